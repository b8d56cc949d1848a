// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wire implements the byte-level codecs shared by the packet
// builder and the response reader: fixed-width integers in both byte
// orders, the 7-bit continuation VarInt, null-terminated and fixed-length
// strings, and hex byte literals.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/packetd/probed/errs"
)

// MaxVarintBytes bounds VarInt decoding: a 10th continuation byte is a
// malformed stream, never a valid encoding of an in-range value.
const MaxVarintBytes = 10

func EncodeByte(v uint8) []byte { return []byte{v} }

func EncodeShortLE(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func EncodeShortBE(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func EncodeIntLE(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func EncodeIntBE(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func DecodeByte(b []byte) (uint8, error) {
	if len(b) < 1 {
		return 0, errs.InsufficientData(1, len(b))
	}
	return b[0], nil
}

func DecodeShortLE(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, errs.InsufficientData(2, len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

func DecodeShortBE(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, errs.InsufficientData(2, len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

func DecodeIntLE(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, errs.InsufficientData(4, len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

func DecodeIntBE(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, errs.InsufficientData(4, len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// EncodeVarInt writes the low 7 bits of v per byte, setting the high bit on
// every byte but the last.
func EncodeVarInt(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

// DecodeVarInt reads a VarInt from the front of b, returning the decoded
// value and the number of bytes consumed.
func DecodeVarInt(b []byte) (uint64, int, error) {
	var result uint64
	var shift uint

	for i := 0; i < len(b); i++ {
		if i == MaxVarintBytes {
			return 0, 0, errs.Parse("varint too long")
		}
		cur := b[i]
		result |= uint64(cur&0x7f) << shift
		if cur&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errs.InsufficientData(1, 0)
}

// EncodeStringNull appends the UTF-8 bytes of s followed by a single 0x00.
func EncodeStringNull(s string) []byte {
	return append([]byte(s), 0x00)
}

// EncodeStringLen writes exactly n bytes: truncating s's UTF-8 bytes if
// longer, zero-padding if shorter.
func EncodeStringLen(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

// EncodeBytes decodes a hex literal (spaces and an optional 0x/0X prefix
// allowed) into raw bytes.
func EncodeBytes(hexLiteral string) ([]byte, error) {
	clean := strings.ReplaceAll(hexLiteral, " ", "")
	clean = strings.TrimPrefix(clean, "0x")
	clean = strings.TrimPrefix(clean, "0X")
	if len(clean)%2 != 0 {
		return nil, errs.Parse("hex literal %q has an odd number of digits", hexLiteral)
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, errs.Parse("invalid hex literal %q: %v", hexLiteral, err)
	}
	return b, nil
}

// DecodeStringNull reads bytes up to (and consuming) a 0x00 terminator.
func DecodeStringNull(b []byte) (string, int, error) {
	idx := bytes.IndexByte(b, 0x00)
	if idx == -1 {
		return "", 0, errs.Parse("READ_STRING_NULL: no null terminator in %d remaining byte(s)", len(b))
	}
	return string(b[:idx]), idx + 1, nil
}

// DecodeStringLen reads exactly n bytes and strips trailing 0x00 bytes.
func DecodeStringLen(b []byte, n int) (string, error) {
	if len(b) < n {
		return "", errs.InsufficientData(n, len(b))
	}
	return string(bytes.TrimRight(b[:n], "\x00")), nil
}
