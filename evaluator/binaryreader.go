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

// Package evaluator executes RESPONSE-block and CODE-block statements
// against a probe's accumulated environment: a cursor-based binary reader,
// an HTTP reader, and the CODE sub-language's statement/expression
// evaluator.
package evaluator

import (
	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/value"
	"github.com/packetd/probed/wire"
)

// BinaryReader is the cursor over one exchange's raw response bytes.
type BinaryReader struct {
	buf    []byte
	cursor int
}

func NewBinaryReader(buf []byte) *BinaryReader {
	return &BinaryReader{buf: buf}
}

// Cursor reports the current read offset, for the cursor-monotonicity
// invariant exercised in tests.
func (r *BinaryReader) Cursor() int { return r.cursor }

func (r *BinaryReader) remaining() []byte { return r.buf[r.cursor:] }

// Exec executes one RESPONSE-block command (READ_*/EXPECT_*/SKIP_BYTES)
// against env, advancing the cursor.
func (r *BinaryReader) Exec(cmd script.Command, env *value.Environment) error {
	switch cmd.Op {
	case "READ_BYTE":
		v, err := wire.DecodeByte(r.remaining())
		if err != nil {
			return err
		}
		r.cursor += 1
		env.Set(cmd.Dest, value.Uint(uint64(v)))

	case "READ_SHORT":
		v, err := wire.DecodeShortLE(r.remaining())
		if err != nil {
			return err
		}
		r.cursor += 2
		env.Set(cmd.Dest, value.Uint(uint64(v)))

	case "READ_SHORT_BE":
		v, err := wire.DecodeShortBE(r.remaining())
		if err != nil {
			return err
		}
		r.cursor += 2
		env.Set(cmd.Dest, value.Uint(uint64(v)))

	case "READ_INT":
		v, err := wire.DecodeIntLE(r.remaining())
		if err != nil {
			return err
		}
		r.cursor += 4
		env.Set(cmd.Dest, value.Uint(uint64(v)))

	case "READ_INT_BE":
		v, err := wire.DecodeIntBE(r.remaining())
		if err != nil {
			return err
		}
		r.cursor += 4
		env.Set(cmd.Dest, value.Uint(uint64(v)))

	case "READ_VARINT":
		v, n, err := wire.DecodeVarInt(r.remaining())
		if err != nil {
			return err
		}
		r.cursor += n
		env.Set(cmd.Dest, value.Uint(v))

	case "READ_STRING_NULL":
		s, n, err := wire.DecodeStringNull(r.remaining())
		if err != nil {
			return err
		}
		r.cursor += n
		env.Set(cmd.Dest, value.String(s))

	case "READ_STRING":
		n, err := resolveLength(cmd.Args[0], env)
		if err != nil {
			return err
		}
		s, err := wire.DecodeStringLen(r.remaining(), n)
		if err != nil {
			return err
		}
		r.cursor += n
		env.Set(cmd.Dest, value.String(s))

	case "SKIP_BYTES":
		n, err := resolveLength(cmd.Args[0], env)
		if err != nil {
			return err
		}
		if n > len(r.remaining()) {
			return errs.InsufficientData(n, len(r.remaining()))
		}
		r.cursor += n

	case "EXPECT_BYTE":
		want, err := resolveLength(cmd.Args[0], env)
		if err != nil {
			return err
		}
		got, err := wire.DecodeByte(r.remaining())
		if err != nil {
			return err
		}
		r.cursor += 1
		if int(got) != want {
			return errs.Validation("EXPECT_BYTE: expected 0x%02X, got 0x%02X", want, got)
		}

	case "EXPECT_MAGIC":
		want, err := wire.EncodeBytes(cmd.Args[0].Str)
		if err != nil {
			return err
		}
		if len(want) > len(r.remaining()) {
			return errs.InsufficientData(len(want), len(r.remaining()))
		}
		got := r.remaining()[:len(want)]
		for i := range want {
			if got[i] != want[i] {
				return errs.Validation("EXPECT_MAGIC: response bytes do not match %x", want)
			}
		}
		r.cursor += len(want)

	default:
		return errs.Parse("binary reader: unsupported command %q", cmd.Op)
	}
	return nil
}

func resolveLength(op script.Operand, env *value.Environment) (int, error) {
	switch op.Kind {
	case script.OperandInt:
		return int(op.Int), nil
	case script.OperandIdent:
		v, ok := env.Get(op.Str)
		if !ok {
			return 0, errs.Parse("undefined variable %q", op.Str)
		}
		i, ok := v.AsInt()
		if !ok {
			return 0, errs.Parse("variable %q does not hold a numeric value", op.Str)
		}
		return int(i), nil
	default:
		return 0, errs.Parse("operand cannot be used as a length")
	}
}
