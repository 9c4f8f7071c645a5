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

// Package shm contains the platform-specific code that maps a named shared
// memory segment published by another process.
package shm

import "errors"

var (
	// ErrNotExist is returned when no segment with the requested name exists.
	ErrNotExist = errors.New("shared memory segment does not exist")
	// ErrEmpty is returned when the segment exists but has no mappable size.
	ErrEmpty = errors.New("shared memory segment is empty")
	// ErrUnsupported is returned on platforms without a mapping implementation.
	ErrUnsupported = errors.New("shared memory mapping not supported on this platform")
)

// MappedRegion represents a memory-mapped view of a foreign segment.
// Addr aliases the foreign memory and is invalid after UnmapRegion.
type MappedRegion struct {
	Addr []byte
	Name string

	// platform-specific cleanup state
	handle uintptr
	view   uintptr
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Name string
	// Writable requests a read-write view. Readers only need read access.
	Writable bool
}

// Function implementations are provided in platform-specific files (shm_linux.go, shm_windows.go, shm_other.go).
