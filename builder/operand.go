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

package builder

import (
	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/value"
)

// isPacketLen reports whether op is the PACKET_LEN sentinel operand.
func isPacketLen(op script.Operand) bool {
	return op.Kind == script.OperandIdent && op.Str == value.PacketLen
}

// resolveNumeric resolves a WRITE_* numeric operand: a literal int, or an
// identifier looked up in env and converted to an integer.
func resolveNumeric(op script.Operand, env *value.Environment) (uint64, error) {
	switch op.Kind {
	case script.OperandInt:
		return uint64(op.Int), nil
	case script.OperandIdent:
		v, ok := env.Get(op.Str)
		if !ok {
			return 0, errs.Parse("undefined variable %q", op.Str)
		}
		i, ok := v.AsInt()
		if !ok {
			return 0, errs.Parse("variable %q does not hold a numeric value", op.Str)
		}
		return uint64(i), nil
	default:
		return 0, errs.Parse("operand cannot be used as a number")
	}
}

// resolveString resolves a WRITE_STRING/WRITE_STRING_LEN string operand. A
// quoted literal is used verbatim, except for the literal token "HOST",
// which by the documented convention of the probe language is replaced at
// probe start with the resolved hostname string regardless of where it
// appears. An identifier operand is looked up in env.
func resolveString(op script.Operand, env *value.Environment) (string, error) {
	switch op.Kind {
	case script.OperandString:
		if op.Str == value.Host {
			if v, ok := env.Get(value.Host); ok {
				return v.AsString(), nil
			}
		}
		return op.Str, nil
	case script.OperandIdent:
		v, ok := env.Get(op.Str)
		if !ok {
			return "", errs.Parse("undefined variable %q", op.Str)
		}
		return v.AsString(), nil
	default:
		return "", errs.Parse("operand cannot be used as a string")
	}
}
