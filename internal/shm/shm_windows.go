//go:build windows

/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32          = windows.NewLazySystemDLL("kernel32.dll")
	procOpenFileMappingW = modkernel32.NewProc("OpenFileMappingW")
)

func openFileMapping(access uint32, name string) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	r, _, e := procOpenFileMappingW.Call(uintptr(access), 0, uintptr(unsafe.Pointer(p)))
	if r == 0 {
		if e == nil || e == windows.Errno(0) {
			e = windows.ERROR_INVALID_HANDLE
		}
		return 0, e
	}
	return windows.Handle(r), nil
}

// MapRegion opens an existing named file mapping and maps a view of it
// (Windows implementation). The view size is discovered with VirtualQuery.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	access := uint32(windows.FILE_MAP_READ)
	if opts.Writable {
		access |= windows.FILE_MAP_WRITE
	}
	h, err := openFileMapping(access, opts.Name)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) {
			return nil, fmt.Errorf("OpenFileMapping %s: %w", opts.Name, ErrNotExist)
		}
		return nil, fmt.Errorf("OpenFileMapping: %w", err)
	}
	view, err := windows.MapViewOfFile(h, access, 0, 0, 0)
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}
	var info windows.MemoryBasicInformation
	if err := windows.VirtualQuery(view, &info, unsafe.Sizeof(info)); err != nil {
		_ = windows.UnmapViewOfFile(view)
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("VirtualQuery: %w", err)
	}
	if info.RegionSize == 0 {
		_ = windows.UnmapViewOfFile(view)
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("%s: %w", opts.Name, ErrEmpty)
	}
	return &MappedRegion{
		Addr:   unsafe.Slice((*byte)(unsafe.Pointer(view)), int(info.RegionSize)),
		Name:   opts.Name,
		handle: uintptr(h),
		view:   view,
	}, nil
}

// UnmapRegion unmaps the view and closes the mapping handle (Windows implementation).
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.view == 0 {
		return nil
	}
	var errs []error
	if err := windows.UnmapViewOfFile(region.view); err != nil {
		errs = append(errs, fmt.Errorf("UnmapViewOfFile: %w", err))
	}
	if err := windows.CloseHandle(windows.Handle(region.handle)); err != nil {
		errs = append(errs, fmt.Errorf("CloseHandle: %w", err))
	}
	region.Addr, region.view, region.handle = nil, 0, 0
	return errors.Join(errs...)
}
