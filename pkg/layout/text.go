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
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Codepage is the narrow character set used for every string field.
var Codepage = charmap.Windows1252

// DecodeText decodes a fixed-size narrow string field. Everything from the
// first NUL onwards is dropped; a field without NUL is used whole.
func DecodeText(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	if len(field) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(field))
	for _, c := range field {
		if c < utf8.RuneSelf {
			sb.WriteByte(c)
			continue
		}
		sb.WriteRune(Codepage.DecodeByte(c))
	}
	return sb.String()
}

// EncodeText writes s into field as narrow text, always leaving room for the
// terminating NUL. Runes the codepage cannot represent become '?'. The rest of
// the field is zeroed.
func EncodeText(field []byte, s string) {
	clear(field)
	if len(field) == 0 {
		return
	}
	n := 0
	for _, r := range s {
		if n >= len(field)-1 {
			break
		}
		c, ok := Codepage.EncodeRune(r)
		if !ok {
			c = '?'
		}
		field[n] = c
		n++
	}
}
