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
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeader_FieldOffsets(t *testing.T) {
	b := make([]byte, HeaderSize)
	for i := 0; i < HeaderSize/4; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(100+i))
	}
	h, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, Header{
		Signature:    100,
		Version:      101,
		AppEntrySize: 102,
		AppArrOffset: 103,
		AppArrSize:   104,
		OSDEntrySize: 105,
		OSDArrOffset: 106,
		OSDArrSize:   107,
		OSDFrame:     108,
	}, h)
	assert.False(t, h.Valid())
}

func TestHeader_EncodeDecodeIdentity(t *testing.T) {
	want := Header{
		Signature:    Magic,
		Version:      0x00020013,
		AppEntrySize: AppEntrySize,
		AppArrOffset: 4096,
		AppArrSize:   256,
		OSDEntrySize: OSDEntrySize,
		OSDArrOffset: HeaderSize,
		OSDArrSize:   8,
		OSDFrame:     math.MaxUint32,
	}
	b := make([]byte, HeaderSize)
	require.NoError(t, EncodeHeader(b, want))
	assert.Equal(t, []byte("SSTR"), b[:4], "magic is stored little-endian")

	got, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, got.Valid())
	assert.Equal(t, uint16(2), got.VersionMajor())
	assert.Equal(t, uint16(0x13), got.VersionMinor())
}

func TestDecodeHeader_ShortBuffer(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrShortBuffer)
	assert.ErrorIs(t, EncodeHeader(nil, Header{}), ErrShortBuffer)
}

func TestHeader_SpansDoNotOverflow(t *testing.T) {
	h := Header{
		OSDArrOffset: math.MaxUint32,
		OSDEntrySize: math.MaxUint32,
		OSDArrSize:   math.MaxUint32,
		AppArrOffset: 10,
		AppEntrySize: 600,
		AppArrSize:   2,
	}
	start, end := h.OSDSpan()
	assert.Equal(t, uint64(math.MaxUint32), start)
	assert.Equal(t, uint64(math.MaxUint32)+uint64(math.MaxUint32)*uint64(math.MaxUint32), end)

	start, end = h.AppSpan()
	assert.Equal(t, uint64(10), start)
	assert.Equal(t, uint64(1210), end)
	assert.Equal(t, uint64(610), h.AppEntryOffset(1))
	assert.Equal(t, uint64(math.MaxUint32)*2, h.OSDEntryOffset(1))
}

func TestHeader_String(t *testing.T) {
	s := Header{Signature: Magic, Version: 0x00020010, OSDFrame: 7}.String()
	assert.True(t, strings.HasPrefix(s, "RTSS Shared Memory V2\n"))
	assert.Contains(t, s, "Version                       2.16\n")
	assert.Contains(t, s, "OSD Frame                     7\n")
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name  string
		field []byte
		want  string
	}{
		{"trim at first nul", []byte("FPS OK\x00garbage\x00"), "FPS OK"},
		{"no nul uses whole field", []byte("abcd"), "abcd"},
		{"all nul", make([]byte, 16), ""},
		{"empty field", nil, ""},
		{"leading nul", []byte("\x00abc"), ""},
		{"codepage high bytes", []byte{'C', 'a', 'f', 0xE9, 0x80, 0}, "Café€"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeText(tt.field))
		})
	}
}

func TestEncodeText_LeavesTerminator(t *testing.T) {
	field := bytes.Repeat([]byte{0xff}, 8)
	EncodeText(field, "0123456789")
	assert.Equal(t, []byte("0123456\x00"), field)
	assert.Equal(t, "0123456", DecodeText(field))

	EncodeText(field, "日")
	assert.Equal(t, "?", DecodeText(field))
}

func TestDecodeOSDEntry(t *testing.T) {
	b := make([]byte, OSDEntrySize)
	copy(b, "FPS OK")
	copy(b[OSDTextLen:], "RTSS Owner")
	e, err := DecodeOSDEntry(b)
	require.NoError(t, err)
	assert.Equal(t, OSDEntry{Text: "FPS OK", Owner: "RTSS Owner"}, e)

	// text filling its whole buffer must not bleed into the owner field
	full := bytes.Repeat([]byte{'x'}, OSDEntrySize)
	e, err = DecodeOSDEntry(full)
	require.NoError(t, err)
	assert.Len(t, e.Text, OSDTextLen)
	assert.Len(t, e.Owner, OSDTextLen)

	e, err = DecodeOSDEntry(make([]byte, OSDEntrySize))
	require.NoError(t, err)
	assert.Equal(t, OSDEntry{}, e)

	_, err = DecodeOSDEntry(make([]byte, OSDEntrySize-1))
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeAppEntry_FieldOffsets(t *testing.T) {
	b := make([]byte, AppEntrySize+64)
	le := binary.LittleEndian
	le.PutUint32(b[0:], 4242)
	copy(b[4:], "VRChat.exe")
	for off := 264; off <= 336; off += 4 {
		le.PutUint32(b[off:], uint32(off))
	}
	copy(b[340:], `C:\captures`)
	// trailing bytes of a larger, newer record
	copy(b[AppEntrySize:], "ignored")

	e, err := DecodeAppEntry(b)
	require.NoError(t, err)
	assert.Equal(t, AppEntry{
		ProcessID:          4242,
		Name:               "VRChat.exe",
		Flags:              264,
		Time0:              268,
		Time1:              272,
		Frames:             276,
		FrameTime:          280,
		StatFlags:          284,
		StatTime0:          288,
		StatTime1:          292,
		StatFrames:         296,
		StatCount:          300,
		StatFramerateMin:   304,
		StatFramerateAvg:   308,
		StatFramerateMax:   312,
		OSDX:               316,
		OSDY:               320,
		OSDPixel:           324,
		OSDColor:           328,
		OSDFrame:           332,
		ScreenCaptureFlags: 336,
		ScreenCapturePath:  `C:\captures`,
	}, e)
	assert.Equal(t, uint32(296), e.FPS())
}

func TestAppEntry_EncodeDecode(t *testing.T) {
	want := AppEntry{ProcessID: 1, Name: "VRChat.exe", Frames: 144, StatFramerateMax: 1440}
	b := make([]byte, AppEntrySize)
	require.NoError(t, EncodeAppEntry(b, want))
	got, err := DecodeAppEntry(b)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = DecodeAppEntry(b[:AppEntrySize-1])
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestAppEntry_String(t *testing.T) {
	s := AppEntry{Name: "game.exe", Frames: 60}.String()
	assert.Contains(t, s, "Name                          game.exe\n")
	assert.Contains(t, s, "Frames                        60\n")
	assert.Contains(t, OSDEntry{Text: "hi"}.String(), "OSD                           hi\n")
}
