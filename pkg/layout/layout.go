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

// Package layout decodes the fixed binary layout of the RTSS shared memory
// region (RTSSSharedMemoryV2): the header and its two record arrays.
//
// All functions are pure. They work on byte slices already copied out of the
// mapped region and never touch shared memory themselves. Multi-byte fields are
// little-endian uint32. Strings are narrow, NUL-terminated Windows-1252 text
// stored in fixed-size buffers.
package layout

import (
	"errors"
	"fmt"
)

// DefaultMapName is the name RTSS publishes its shared memory under.
const DefaultMapName = "RTSSSharedMemoryV2"

// Magic is the header signature, 'RTSS' read as a little-endian uint32.
const Magic uint32 = 0x52545353

const (
	HeaderSize   = 36
	OSDEntrySize = 512
	AppEntrySize = 600

	OSDTextLen = 256
	NameLen    = 260
	PathLen    = 260
)

var (
	// ErrShortBuffer is returned when a buffer is smaller than the fixed record size.
	ErrShortBuffer = errors.New("layout: buffer shorter than record")
	// ErrInvalidSignature is returned for a header whose signature is not Magic.
	ErrInvalidSignature = errors.New("layout: invalid signature")
)

func checkLen(what string, b []byte, want int) error {
	if len(b) < want {
		return fmt.Errorf("%s: got %d bytes, need %d: %w", what, len(b), want, ErrShortBuffer)
	}
	return nil
}
