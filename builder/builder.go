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

// Package builder executes WRITE-class commands against a growing byte
// buffer, recording deferred length placeholders (PACKET_LEN) and patching
// them once the buffer is complete.
package builder

import (
	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/value"
	"github.com/packetd/probed/wire"
)

type placeholderKind uint8

const (
	placeholderIntLE placeholderKind = iota
	placeholderIntBE
	placeholderVarInt
)

// placeholder records one PACKET_LEN back-patch site: its position in buf,
// the encoding it was written with, and the number of bytes it currently
// occupies (which only ever changes for VARINT, whose encoded width can
// grow once the real length is known).
type placeholder struct {
	pos   int
	kind  placeholderKind
	width int
}

// Builder is the BuildBuffer of spec §3: a growable byte vector plus a list
// of length placeholders, scoped to one PACKET block.
type Builder struct {
	buf          []byte
	placeholders []placeholder
}

func New() *Builder {
	return &Builder{}
}

// Exec executes one WRITE_* command against the buffer.
func (b *Builder) Exec(cmd script.Command, env *value.Environment) error {
	switch cmd.Op {
	case "WRITE_BYTE":
		n, err := resolveNumeric(cmd.Args[0], env)
		if err != nil {
			return err
		}
		b.buf = append(b.buf, wire.EncodeByte(uint8(n))...)

	case "WRITE_SHORT":
		n, err := resolveNumeric(cmd.Args[0], env)
		if err != nil {
			return err
		}
		b.buf = append(b.buf, wire.EncodeShortLE(uint16(n))...)

	case "WRITE_SHORT_BE":
		n, err := resolveNumeric(cmd.Args[0], env)
		if err != nil {
			return err
		}
		b.buf = append(b.buf, wire.EncodeShortBE(uint16(n))...)

	case "WRITE_INT":
		if isPacketLen(cmd.Args[0]) {
			b.addPlaceholder(placeholderIntLE, 4)
			return nil
		}
		n, err := resolveNumeric(cmd.Args[0], env)
		if err != nil {
			return err
		}
		b.buf = append(b.buf, wire.EncodeIntLE(uint32(n))...)

	case "WRITE_INT_BE":
		if isPacketLen(cmd.Args[0]) {
			b.addPlaceholder(placeholderIntBE, 4)
			return nil
		}
		n, err := resolveNumeric(cmd.Args[0], env)
		if err != nil {
			return err
		}
		b.buf = append(b.buf, wire.EncodeIntBE(uint32(n))...)

	case "WRITE_VARINT":
		if isPacketLen(cmd.Args[0]) {
			b.addPlaceholder(placeholderVarInt, 1)
			return nil
		}
		n, err := resolveNumeric(cmd.Args[0], env)
		if err != nil {
			return err
		}
		b.buf = append(b.buf, wire.EncodeVarInt(n)...)

	case "WRITE_STRING":
		s, err := resolveString(cmd.Args[0], env)
		if err != nil {
			return err
		}
		b.buf = append(b.buf, wire.EncodeStringNull(s)...)

	case "WRITE_STRING_LEN":
		s, err := resolveString(cmd.Args[0], env)
		if err != nil {
			return err
		}
		n, err := resolveNumeric(cmd.Args[1], env)
		if err != nil {
			return err
		}
		b.buf = append(b.buf, wire.EncodeStringLen(s, int(n))...)

	case "WRITE_BYTES":
		raw, err := wire.EncodeBytes(cmd.Args[0].Str)
		if err != nil {
			return err
		}
		b.buf = append(b.buf, raw...)

	default:
		return errs.Parse("builder: unsupported command %q", cmd.Op)
	}
	return nil
}

// addPlaceholder reserves width zero bytes at the current buffer end and
// records a placeholder for later resolution.
func (b *Builder) addPlaceholder(kind placeholderKind, width int) {
	b.placeholders = append(b.placeholders, placeholder{pos: len(b.buf), kind: kind, width: width})
	b.buf = append(b.buf, make([]byte, width)...)
}

// Finalize resolves every placeholder in reverse insertion order (rightmost
// first) and returns the completed buffer. Resolving rightmost-first means
// each placeholder's patched length is computed, and any VARINT splice
// performed, using the buffer's final length from that placeholder's own
// position onward — earlier (lower-position) placeholders are never
// disturbed by a later splice, since splices only ever touch bytes at or
// after their own position.
func (b *Builder) Finalize() ([]byte, error) {
	for i := len(b.placeholders) - 1; i >= 0; i-- {
		p := b.placeholders[i]
		length := len(b.buf) - (p.pos + p.width)
		if length < 0 {
			return nil, errs.Parse("builder: negative patched length at offset %d", p.pos)
		}

		switch p.kind {
		case placeholderIntLE:
			copy(b.buf[p.pos:p.pos+4], wire.EncodeIntLE(uint32(length)))
		case placeholderIntBE:
			copy(b.buf[p.pos:p.pos+4], wire.EncodeIntBE(uint32(length)))
		case placeholderVarInt:
			enc := wire.EncodeVarInt(uint64(length))
			if len(enc) == p.width {
				copy(b.buf[p.pos:p.pos+p.width], enc)
			} else {
				spliced := make([]byte, 0, len(b.buf)-p.width+len(enc))
				spliced = append(spliced, b.buf[:p.pos]...)
				spliced = append(spliced, enc...)
				spliced = append(spliced, b.buf[p.pos+p.width:]...)
				b.buf = spliced
			}
		}
	}
	b.placeholders = nil
	return b.buf, nil
}
