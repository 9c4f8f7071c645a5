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
	"strings"
)

// OSDEntry is one registered on-screen-display slot.
type OSDEntry struct {
	Text  string
	Owner string
}

func (e OSDEntry) String() string {
	var sb strings.Builder
	sb.WriteString("RTSS Shared Memory V2 OSD Entry\n")
	row(&sb, "OSD", e.Text)
	row(&sb, "OSD Owner", e.Owner)
	return sb.String()
}

const (
	osdTextOffset  = 0
	osdOwnerOffset = osdTextOffset + OSDTextLen
)

// DecodeOSDEntry decodes the first OSDEntrySize bytes of b.
func DecodeOSDEntry(b []byte) (OSDEntry, error) {
	if err := checkLen("osd entry", b, OSDEntrySize); err != nil {
		return OSDEntry{}, err
	}
	return OSDEntry{
		Text:  DecodeText(b[osdTextOffset:osdOwnerOffset]),
		Owner: DecodeText(b[osdOwnerOffset:OSDEntrySize]),
	}, nil
}

// EncodeOSDEntry writes e into the first OSDEntrySize bytes of b.
func EncodeOSDEntry(b []byte, e OSDEntry) error {
	if err := checkLen("osd entry", b, OSDEntrySize); err != nil {
		return err
	}
	EncodeText(b[osdTextOffset:osdOwnerOffset], e.Text)
	EncodeText(b[osdOwnerOffset:OSDEntrySize], e.Owner)
	return nil
}

// AppEntry holds the statistics RTSS keeps for one hooked process.
type AppEntry struct {
	ProcessID          uint32
	Name               string
	Flags              uint32
	Time0              uint32
	Time1              uint32
	Frames             uint32
	FrameTime          uint32
	StatFlags          uint32
	StatTime0          uint32
	StatTime1          uint32
	StatFrames         uint32
	StatCount          uint32
	StatFramerateMin   uint32
	StatFramerateAvg   uint32
	StatFramerateMax   uint32
	OSDX               uint32
	OSDY               uint32
	OSDPixel           uint32
	OSDColor           uint32
	OSDFrame           uint32
	ScreenCaptureFlags uint32
	ScreenCapturePath  string
}

// FPS returns the frame count of the current statistics window.
func (e AppEntry) FPS() uint32 { return e.StatFrames }

func (e AppEntry) String() string {
	var sb strings.Builder
	sb.WriteString("RTSS Shared Memory V2 APP Entry\n")
	row(&sb, "Process ID", e.ProcessID)
	row(&sb, "Name", e.Name)
	row(&sb, "Frames", e.Frames)
	row(&sb, "Frame Time", e.FrameTime)
	row(&sb, "Stat Flags", e.StatFlags)
	row(&sb, "Stat Time 0", e.StatTime0)
	row(&sb, "Stat Time 1", e.StatTime1)
	row(&sb, "Stat Frames", e.StatFrames)
	row(&sb, "Stat Count", e.StatCount)
	row(&sb, "Stat Framerate Min", e.StatFramerateMin)
	row(&sb, "Stat Framerate Avg", e.StatFramerateAvg)
	row(&sb, "Stat Framerate Max", e.StatFramerateMax)
	row(&sb, "OSD X", e.OSDX)
	row(&sb, "OSD Y", e.OSDY)
	row(&sb, "OSD Pixel", e.OSDPixel)
	row(&sb, "OSD Color", e.OSDColor)
	row(&sb, "OSD Frame", e.OSDFrame)
	row(&sb, "Screen Capture Flags", e.ScreenCaptureFlags)
	row(&sb, "Screen Capture Path", e.ScreenCapturePath)
	return sb.String()
}

const (
	appProcessIDOffset = 0
	appNameOffset      = 4
	appFlagsOffset     = appNameOffset + NameLen // 264
	appPathOffset      = 340
)

// appFields lists the uint32 fields from appFlagsOffset to appPathOffset, in
// layout order, 4 bytes apart.
func appFields(e *AppEntry) []*uint32 {
	return []*uint32{
		&e.Flags,
		&e.Time0,
		&e.Time1,
		&e.Frames,
		&e.FrameTime,
		&e.StatFlags,
		&e.StatTime0,
		&e.StatTime1,
		&e.StatFrames,
		&e.StatCount,
		&e.StatFramerateMin,
		&e.StatFramerateAvg,
		&e.StatFramerateMax,
		&e.OSDX,
		&e.OSDY,
		&e.OSDPixel,
		&e.OSDColor,
		&e.OSDFrame,
		&e.ScreenCaptureFlags,
	}
}

// DecodeAppEntry decodes the first AppEntrySize bytes of b. Bytes beyond
// AppEntrySize, written by newer publishers, are ignored.
func DecodeAppEntry(b []byte) (AppEntry, error) {
	if err := checkLen("app entry", b, AppEntrySize); err != nil {
		return AppEntry{}, err
	}
	le := binary.LittleEndian
	e := AppEntry{
		ProcessID:         le.Uint32(b[appProcessIDOffset:]),
		Name:              DecodeText(b[appNameOffset:appFlagsOffset]),
		ScreenCapturePath: DecodeText(b[appPathOffset : appPathOffset+PathLen]),
	}
	for i, f := range appFields(&e) {
		*f = le.Uint32(b[appFlagsOffset+4*i:])
	}
	return e, nil
}

// EncodeAppEntry writes e into the first AppEntrySize bytes of b.
func EncodeAppEntry(b []byte, e AppEntry) error {
	if err := checkLen("app entry", b, AppEntrySize); err != nil {
		return err
	}
	le := binary.LittleEndian
	le.PutUint32(b[appProcessIDOffset:], e.ProcessID)
	EncodeText(b[appNameOffset:appFlagsOffset], e.Name)
	for i, f := range appFields(&e) {
		le.PutUint32(b[appFlagsOffset+4*i:], *f)
	}
	EncodeText(b[appPathOffset:appPathOffset+PathLen], e.ScreenCapturePath)
	return nil
}
