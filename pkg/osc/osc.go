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

// Package osc encodes Open Sound Control 1.0 messages, enough to drive the
// VRChat chatbox.
package osc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// ChatboxAddress is the VRChat address that types text into the chatbox.
const ChatboxAddress = "/chatbox/input"

var (
	// ErrUnsupportedArg is returned for argument types other than string,
	// int32, float32 and bool.
	ErrUnsupportedArg = errors.New("osc: unsupported argument type")
	// ErrMalformed is returned by Decode for packets that are not valid messages.
	ErrMalformed = errors.New("osc: malformed message")
)

var pool bytebufferpool.Pool

// Message is one OSC message.
type Message struct {
	Address string
	Args    []any
}

// ChatboxInput builds the message that puts text into the chatbox. immediate
// sends it without opening the keyboard; notify plays the notification sound.
func ChatboxInput(text string, immediate, notify bool) Message {
	return Message{Address: ChatboxAddress, Args: []any{text, immediate, notify}}
}

// Encode returns the wire form of m.
func (m Message) Encode() ([]byte, error) {
	if !strings.HasPrefix(m.Address, "/") {
		return nil, fmt.Errorf("address %q: %w", m.Address, ErrMalformed)
	}
	buf := pool.Get()
	defer pool.Put(buf)

	tags := make([]byte, 0, len(m.Args)+1)
	tags = append(tags, ',')
	for i, arg := range m.Args {
		switch v := arg.(type) {
		case string:
			tags = append(tags, 's')
		case int32:
			tags = append(tags, 'i')
		case float32:
			tags = append(tags, 'f')
		case bool:
			if v {
				tags = append(tags, 'T')
			} else {
				tags = append(tags, 'F')
			}
		default:
			return nil, fmt.Errorf("argument %d of type %T: %w", i, arg, ErrUnsupportedArg)
		}
	}

	writeString(buf, m.Address)
	writeString(buf, string(tags))
	var word [4]byte
	for _, arg := range m.Args {
		switch v := arg.(type) {
		case string:
			writeString(buf, v)
		case int32:
			binary.BigEndian.PutUint32(word[:], uint32(v))
			_, _ = buf.Write(word[:])
		case float32:
			binary.BigEndian.PutUint32(word[:], math.Float32bits(v))
			_, _ = buf.Write(word[:])
		}
	}
	return append([]byte(nil), buf.B...), nil
}

// writeString writes s, its NUL terminator and padding to a 4-byte boundary.
func writeString(buf *bytebufferpool.ByteBuffer, s string) {
	_, _ = buf.WriteString(s)
	pad := 4 - len(s)%4
	_, _ = buf.Write(make([]byte, pad))
}

// Decode parses a single OSC message.
func Decode(b []byte) (Message, error) {
	addr, rest, err := readString(b)
	if err != nil {
		return Message{}, err
	}
	if !strings.HasPrefix(addr, "/") {
		return Message{}, fmt.Errorf("address %q: %w", addr, ErrMalformed)
	}
	m := Message{Address: addr}
	if len(rest) == 0 {
		return m, nil
	}
	tags, rest, err := readString(rest)
	if err != nil {
		return Message{}, err
	}
	if !strings.HasPrefix(tags, ",") {
		return Message{}, fmt.Errorf("type tags %q: %w", tags, ErrMalformed)
	}
	for _, tag := range tags[1:] {
		switch tag {
		case 's':
			var s string
			if s, rest, err = readString(rest); err != nil {
				return Message{}, err
			}
			m.Args = append(m.Args, s)
		case 'i', 'f':
			if len(rest) < 4 {
				return Message{}, fmt.Errorf("short %c argument: %w", tag, ErrMalformed)
			}
			u := binary.BigEndian.Uint32(rest)
			rest = rest[4:]
			if tag == 'i' {
				m.Args = append(m.Args, int32(u))
			} else {
				m.Args = append(m.Args, math.Float32frombits(u))
			}
		case 'T':
			m.Args = append(m.Args, true)
		case 'F':
			m.Args = append(m.Args, false)
		default:
			return Message{}, fmt.Errorf("type tag %q: %w", tag, ErrUnsupportedArg)
		}
	}
	return m, nil
}

func readString(b []byte) (string, []byte, error) {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		return "", nil, fmt.Errorf("unterminated string: %w", ErrMalformed)
	}
	padded := (n/4 + 1) * 4
	if padded > len(b) {
		return "", nil, fmt.Errorf("string padding: %w", ErrMalformed)
	}
	return string(b[:n]), b[padded:], nil
}
