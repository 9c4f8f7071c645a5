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

// Package records reads single layout records out of a bounds-checked source.
// It is shared by the snapshot reader and the point lookup.
package records

import (
	"fmt"

	"github.com/srediag/rtss-shm/pkg/layout"
)

// Source is the read primitive of a mapped region.
type Source interface {
	ReadInto(dst []byte, offset uint64) error
	Capacity() uint64
}

// Header reads and validates the region header. A header whose signature is
// not layout.Magic is reported as layout.ErrInvalidSignature and never returned.
func Header(src Source) (layout.Header, error) {
	var buf [layout.HeaderSize]byte
	if err := src.ReadInto(buf[:], 0); err != nil {
		return layout.Header{}, fmt.Errorf("read header: %w", err)
	}
	h, err := layout.DecodeHeader(buf[:])
	if err != nil {
		return layout.Header{}, err
	}
	if !h.Valid() {
		return layout.Header{}, fmt.Errorf("signature %#08x: %w", h.Signature, layout.ErrInvalidSignature)
	}
	return h, nil
}

// OSD reads OSD record i using the header's stride. scratch, if at least
// layout.OSDEntrySize long, is used as the read buffer.
func OSD(src Source, h layout.Header, i uint32, scratch []byte) (layout.OSDEntry, error) {
	buf := scratchOf(scratch, layout.OSDEntrySize)
	if err := src.ReadInto(buf, h.OSDEntryOffset(i)); err != nil {
		return layout.OSDEntry{}, fmt.Errorf("read osd entry %d: %w", i, err)
	}
	return layout.DecodeOSDEntry(buf)
}

// App reads App record i using the header's stride.
func App(src Source, h layout.Header, i uint32, scratch []byte) (layout.AppEntry, error) {
	buf := scratchOf(scratch, layout.AppEntrySize)
	if err := src.ReadInto(buf, h.AppEntryOffset(i)); err != nil {
		return layout.AppEntry{}, fmt.Errorf("read app entry %d: %w", i, err)
	}
	return layout.DecodeAppEntry(buf)
}

func scratchOf(scratch []byte, n int) []byte {
	if len(scratch) >= n {
		return scratch[:n]
	}
	return make([]byte, n)
}
