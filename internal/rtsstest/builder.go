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

// Package rtsstest builds synthetic RTSS shared memory images, playing the
// part of the publisher in tests.
package rtsstest

import (
	"github.com/srediag/rtss-shm/pkg/layout"
)

// Version2 is the version word of RTSS shared memory 2.0.
const Version2 uint32 = 0x00020000

// Builder assembles a region image. The zero value is not usable; call New.
//
// By default the OSD array follows the header and the App array follows the
// OSD array, each with the local record size as stride.
type Builder struct {
	Header layout.Header
	OSD    []layout.OSDEntry
	Apps   []layout.AppEntry

	// overrides applied after layout; zero means "computed"
	osdOffset, appOffset uint32
	osdStride, appStride uint32
	osdCount, appCount   *uint32
	size                 int
}

// New returns a builder with a valid signature and version 2.0.
func New() *Builder {
	return &Builder{Header: layout.Header{Signature: layout.Magic, Version: Version2}}
}

// WithOSD appends OSD entries.
func (b *Builder) WithOSD(entries ...layout.OSDEntry) *Builder {
	b.OSD = append(b.OSD, entries...)
	return b
}

// WithApps appends App entries.
func (b *Builder) WithApps(entries ...layout.AppEntry) *Builder {
	b.Apps = append(b.Apps, entries...)
	return b
}

// WithSignature overrides the signature.
func (b *Builder) WithSignature(sig uint32) *Builder {
	b.Header.Signature = sig
	return b
}

// WithOSDFrame sets the frame counter.
func (b *Builder) WithOSDFrame(frame uint32) *Builder {
	b.Header.OSDFrame = frame
	return b
}

// WithOSDLayout places the OSD array at offset with the given stride (0 keeps the default).
func (b *Builder) WithOSDLayout(offset, stride uint32) *Builder {
	b.osdOffset, b.osdStride = offset, stride
	return b
}

// WithAppLayout places the App array at offset with the given stride (0 keeps the default).
func (b *Builder) WithAppLayout(offset, stride uint32) *Builder {
	b.appOffset, b.appStride = offset, stride
	return b
}

// WithOSDCount makes the header claim n OSD entries regardless of how many were added.
func (b *Builder) WithOSDCount(n uint32) *Builder {
	b.osdCount = &n
	return b
}

// WithAppCount makes the header claim n App entries regardless of how many were added.
func (b *Builder) WithAppCount(n uint32) *Builder {
	b.appCount = &n
	return b
}

// WithSize forces the image size, truncating or zero-padding it.
func (b *Builder) WithSize(n int) *Builder {
	b.size = n
	return b
}

// Layout returns the header Bytes would write.
func (b *Builder) Layout() layout.Header {
	h := b.Header
	h.OSDEntrySize = orDefault(b.osdStride, layout.OSDEntrySize)
	h.AppEntrySize = orDefault(b.appStride, layout.AppEntrySize)
	h.OSDArrSize = uint32(len(b.OSD))
	if b.osdCount != nil {
		h.OSDArrSize = *b.osdCount
	}
	h.AppArrSize = uint32(len(b.Apps))
	if b.appCount != nil {
		h.AppArrSize = *b.appCount
	}
	h.OSDArrOffset = orDefault(b.osdOffset, layout.HeaderSize)
	h.AppArrOffset = orDefault(b.appOffset, h.OSDArrOffset+h.OSDEntrySize*uint32(len(b.OSD)))
	return h
}

// Bytes renders the image.
func (b *Builder) Bytes() []byte {
	h := b.Layout()
	end := uint64(layout.HeaderSize)
	grow := func(off uint64, n int) {
		if e := off + uint64(n); e > end {
			end = e
		}
	}
	for i := range b.OSD {
		grow(h.OSDEntryOffset(uint32(i)), max(int(h.OSDEntrySize), layout.OSDEntrySize))
	}
	for i := range b.Apps {
		grow(h.AppEntryOffset(uint32(i)), max(int(h.AppEntrySize), layout.AppEntrySize))
	}

	buf := make([]byte, end)
	_ = layout.EncodeHeader(buf, h)
	for i, e := range b.OSD {
		_ = layout.EncodeOSDEntry(buf[h.OSDEntryOffset(uint32(i)):], e)
	}
	for i, e := range b.Apps {
		_ = layout.EncodeAppEntry(buf[h.AppEntryOffset(uint32(i)):], e)
	}
	if b.size > 0 {
		sized := make([]byte, b.size)
		copy(sized, buf)
		buf = sized
	}
	return buf
}

func orDefault(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}
