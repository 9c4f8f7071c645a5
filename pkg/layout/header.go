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

package layout

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	signatureOffset    = 0
	versionOffset      = signatureOffset + 4
	appEntrySizeOffset = versionOffset + 4
	appArrOffsetOffset = appEntrySizeOffset + 4
	appArrSizeOffset   = appArrOffsetOffset + 4
	osdEntrySizeOffset = appArrSizeOffset + 4
	osdArrOffsetOffset = osdEntrySizeOffset + 4
	osdArrSizeOffset   = osdArrOffsetOffset + 4
	osdFrameOffset     = osdArrSizeOffset + 4
)

// Header is the fixed 36-byte preamble of the region.
type Header struct {
	Signature    uint32
	Version      uint32
	AppEntrySize uint32
	AppArrOffset uint32
	AppArrSize   uint32
	OSDEntrySize uint32
	OSDArrOffset uint32
	OSDArrSize   uint32
	// OSDFrame advances every time the publisher updates the OSD.
	OSDFrame uint32
}

// Valid reports whether the signature matches Magic. Offsets and sizes of an
// invalid header must not be used.
func (h Header) Valid() bool { return h.Signature == Magic }

// VersionMajor is the high 16 bits of Version.
func (h Header) VersionMajor() uint16 { return uint16(h.Version >> 16) }

// VersionMinor is the low 16 bits of Version.
func (h Header) VersionMinor() uint16 { return uint16(h.Version & 0xffff) }

// OSDSpan is the byte range the header claims for the OSD array, computed
// without uint32 overflow.
func (h Header) OSDSpan() (offset, end uint64) {
	return arraySpan(h.OSDArrOffset, h.OSDEntrySize, h.OSDArrSize)
}

// AppSpan is the byte range the header claims for the App array.
func (h Header) AppSpan() (offset, end uint64) {
	return arraySpan(h.AppArrOffset, h.AppEntrySize, h.AppArrSize)
}

// OSDEntryOffset is the byte offset of OSD record i, using the writer's stride.
func (h Header) OSDEntryOffset(i uint32) uint64 {
	return uint64(h.OSDArrOffset) + uint64(h.OSDEntrySize)*uint64(i)
}

// AppEntryOffset is the byte offset of App record i, using the writer's stride.
func (h Header) AppEntryOffset(i uint32) uint64 {
	return uint64(h.AppArrOffset) + uint64(h.AppEntrySize)*uint64(i)
}

func arraySpan(offset, entrySize, count uint32) (uint64, uint64) {
	start := uint64(offset)
	return start, start + uint64(entrySize)*uint64(count)
}

func (h Header) String() string {
	var sb strings.Builder
	sb.WriteString("RTSS Shared Memory V2\n")
	row(&sb, "Signature", fmt.Sprintf("%#08x", h.Signature))
	row(&sb, "Version", fmt.Sprintf("%d.%d", h.VersionMajor(), h.VersionMinor()))
	row(&sb, "App Entry Size", h.AppEntrySize)
	row(&sb, "App Array Offset", h.AppArrOffset)
	row(&sb, "App Array Size", h.AppArrSize)
	row(&sb, "OSD Entry Size", h.OSDEntrySize)
	row(&sb, "OSD Array Offset", h.OSDArrOffset)
	row(&sb, "OSD Array Size", h.OSDArrSize)
	row(&sb, "OSD Frame", h.OSDFrame)
	return sb.String()
}

func row(sb *strings.Builder, name string, v interface{}) {
	fmt.Fprintf(sb, "%-30s%v\n", name, v)
}

// DecodeHeader interprets the first HeaderSize bytes of b. It does not check
// the signature; use Header.Valid.
func DecodeHeader(b []byte) (Header, error) {
	if err := checkLen("header", b, HeaderSize); err != nil {
		return Header{}, err
	}
	le := binary.LittleEndian
	return Header{
		Signature:    le.Uint32(b[signatureOffset:]),
		Version:      le.Uint32(b[versionOffset:]),
		AppEntrySize: le.Uint32(b[appEntrySizeOffset:]),
		AppArrOffset: le.Uint32(b[appArrOffsetOffset:]),
		AppArrSize:   le.Uint32(b[appArrSizeOffset:]),
		OSDEntrySize: le.Uint32(b[osdEntrySizeOffset:]),
		OSDArrOffset: le.Uint32(b[osdArrOffsetOffset:]),
		OSDArrSize:   le.Uint32(b[osdArrSizeOffset:]),
		OSDFrame:     le.Uint32(b[osdFrameOffset:]),
	}, nil
}

// EncodeHeader writes h into the first HeaderSize bytes of b.
func EncodeHeader(b []byte, h Header) error {
	if err := checkLen("header", b, HeaderSize); err != nil {
		return err
	}
	le := binary.LittleEndian
	le.PutUint32(b[signatureOffset:], h.Signature)
	le.PutUint32(b[versionOffset:], h.Version)
	le.PutUint32(b[appEntrySizeOffset:], h.AppEntrySize)
	le.PutUint32(b[appArrOffsetOffset:], h.AppArrOffset)
	le.PutUint32(b[appArrSizeOffset:], h.AppArrSize)
	le.PutUint32(b[osdEntrySizeOffset:], h.OSDEntrySize)
	le.PutUint32(b[osdArrOffsetOffset:], h.OSDArrOffset)
	le.PutUint32(b[osdArrSizeOffset:], h.OSDArrSize)
	le.PutUint32(b[osdFrameOffset:], h.OSDFrame)
	return nil
}
