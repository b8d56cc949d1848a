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

// Package value implements the dynamically-typed tagged union that backs
// the CODE sub-language's variable environment, plus the flat per-probe
// Environment that maps names to it.
package value

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/jsonval"
)

type Kind uint8

const (
	KindUint Kind = iota
	KindInt
	KindFloat
	KindBool
	KindBytes
	KindString
	KindSequence
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "UINT"
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindBool:
		return "BOOL"
	case KindBytes:
		return "BYTE"
	case KindString:
		return "STRING"
	case KindSequence:
		return "ARRAY"
	case KindJSON:
		return "JSON"
	default:
		return "UNKNOWN"
	}
}

// Value is the tagged union every environment binding holds. Only the field
// matching Kind is meaningful.
type Value struct {
	Kind  Kind
	U     uint64
	I     int64
	F     float64
	B     bool
	Raw   []byte
	Str   string
	Seq   []Value
	Doc   jsonval.Node
}

func Uint(u uint64) Value          { return Value{Kind: KindUint, U: u} }
func Int(i int64) Value            { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value        { return Value{Kind: KindFloat, F: f} }
func Bool(b bool) Value            { return Value{Kind: KindBool, B: b} }
func Bytes(b []byte) Value         { return Value{Kind: KindBytes, Raw: b} }
func String(s string) Value        { return Value{Kind: KindString, Str: s} }
func Sequence(vs []Value) Value    { return Value{Kind: KindSequence, Seq: vs} }
func JSON(n jsonval.Node) Value    { return Value{Kind: KindJSON, Doc: n} }

// AsString renders the value's textual form, used for string concatenation,
// template substitution and dotted-path base resolution.
func (v Value) AsString() string {
	switch v.Kind {
	case KindUint:
		return strconv.FormatUint(v.U, 10)
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'f', -1, 64)
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindBytes:
		return hex.EncodeToString(v.Raw)
	case KindString:
		return v.Str
	case KindSequence:
		parts := make([]string, len(v.Seq))
		for i, e := range v.Seq {
			parts[i] = e.AsString()
		}
		return strings.Join(parts, ",")
	case KindJSON:
		return v.Doc.String()
	default:
		return ""
	}
}

// AsFloat returns the value as a float64, for arithmetic comparisons.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindUint:
		return float64(v.U), true
	case KindInt:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	case KindString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return f, true
		}
	case KindJSON:
		if v.Doc.Kind == jsonval.KindNumber {
			if f, err := strconv.ParseFloat(v.Doc.Num, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// AsInt returns the value as an int64, used for array indices.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindUint:
		return int64(v.U), true
	case KindInt:
		return v.I, true
	case KindFloat:
		return int64(v.F), true
	case KindString:
		if n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// numericPrefix extracts the longest leading numeric substring of s, the
// way "616M" yields "616" when coerced to INT.
func numericPrefix(s string) (string, bool) {
	s = strings.TrimSpace(s)
	i, n := 0, len(s)
	if i < n && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < n && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return "", false
	}
	if i < n && s[i] == '.' {
		j := i + 1
		for j < n && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j > i+1 {
			i = j
		}
	}
	return s[:i], true
}

// CoerceTo converts v to the requested kind, the way a typed declaration
// (STRING|INT|BYTE|FLOAT|ARRAY) coerces its right-hand expression. Coercion
// failure is always a ParseError.
func CoerceTo(v Value, kind Kind) (Value, error) {
	switch kind {
	case KindString:
		return String(v.AsString()), nil

	case KindInt, KindUint:
		switch v.Kind {
		case KindInt, KindUint, KindFloat, KindBool:
			i, _ := v.AsInt()
			if kind == KindUint {
				return Uint(uint64(i)), nil
			}
			return Int(i), nil
		case KindString:
			pfx, ok := numericPrefix(v.Str)
			if !ok {
				return Value{}, errs.Parse("cannot coerce %q to %s", v.Str, kind)
			}
			if n, err := strconv.ParseInt(pfx, 10, 64); err == nil {
				if kind == KindUint {
					return Uint(uint64(n)), nil
				}
				return Int(n), nil
			}
			f, err := strconv.ParseFloat(pfx, 64)
			if err != nil {
				return Value{}, errs.Parse("cannot coerce %q to %s", v.Str, kind)
			}
			if kind == KindUint {
				return Uint(uint64(f)), nil
			}
			return Int(int64(f)), nil
		default:
			return Value{}, errs.Parse("cannot coerce %s to %s", v.Kind, kind)
		}

	case KindFloat:
		if f, ok := v.AsFloat(); ok {
			return Float(f), nil
		}
		if v.Kind == KindString {
			if pfx, ok := numericPrefix(v.Str); ok {
				if f, err := strconv.ParseFloat(pfx, 64); err == nil {
					return Float(f), nil
				}
			}
		}
		return Value{}, errs.Parse("cannot coerce %q to FLOAT", v.AsString())

	case KindBytes:
		switch v.Kind {
		case KindBytes:
			return v, nil
		case KindInt, KindUint:
			i, _ := v.AsInt()
			return Bytes([]byte{byte(i)}), nil
		case KindString:
			pfx, ok := numericPrefix(v.Str)
			if !ok {
				return Value{}, errs.Parse("cannot coerce %q to BYTE", v.Str)
			}
			n, err := strconv.ParseInt(pfx, 10, 64)
			if err != nil {
				return Value{}, errs.Parse("cannot coerce %q to BYTE", v.Str)
			}
			return Bytes([]byte{byte(n)}), nil
		default:
			return Value{}, errs.Parse("cannot coerce %s to BYTE", v.Kind)
		}

	case KindSequence:
		if v.Kind == KindSequence {
			return v, nil
		}
		return Sequence([]Value{v}), nil

	default:
		return v, nil
	}
}

// Equal implements the CODE sub-language's `==`/`!=` comparison: numeric
// kinds compare numerically, everything else falls back to string equality.
func Equal(a, b Value) bool {
	if af, aok := a.AsFloat(); aok {
		if bf, bok := b.AsFloat(); bok {
			return af == bf
		}
	}
	return a.AsString() == b.AsString()
}

// Compare implements ordering for <, <=, >, >=. Returns (cmp, ok): two
// numeric operands compare numerically, otherwise both are compared as
// strings; ok is always true.
func Compare(a, b Value) (int, bool) {
	af, aok := a.AsFloat()
	bf, bok := b.AsFloat()
	if !aok || !bok {
		as, bs := a.AsString(), b.AsString()
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		default:
			return 0, true
		}
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

// Contains implements the CONTAINS operator: substring containment for
// strings, membership test for sequences.
func Contains(haystack, needle Value) bool {
	if haystack.Kind == KindSequence {
		for _, e := range haystack.Seq {
			if Equal(e, needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(haystack.AsString(), needle.AsString())
}

// Split implements SPLIT(s, d): an ordered sequence of substrings of s
// separated by d, without the delimiter. A delimiter absent from s yields a
// one-element sequence [s].
func Split(s, d string) []Value {
	parts := strings.Split(s, d)
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = String(p)
	}
	return out
}

// Replace implements REPLACE(s, a, b): every non-overlapping occurrence of a
// replaced by b.
func Replace(s, a, b string) string {
	return strings.ReplaceAll(s, a, b)
}

// Index implements zero-based ident[expr] access; an out-of-range index is
// a ParseError.
func Index(v Value, idx int64) (Value, error) {
	switch v.Kind {
	case KindSequence:
		if idx < 0 || int(idx) >= len(v.Seq) {
			return Value{}, errs.Parse("index %d out of range (len=%d)", idx, len(v.Seq))
		}
		return v.Seq[idx], nil
	case KindJSON:
		if v.Doc.Kind != jsonval.KindArray {
			return Value{}, errs.Parse("cannot index non-array JSON node")
		}
		if idx < 0 || int(idx) >= len(v.Doc.Array) {
			return Value{}, errs.Parse("index %d out of range (len=%d)", idx, len(v.Doc.Array))
		}
		return JSON(v.Doc.Array[idx]), nil
	case KindString:
		r := []rune(v.Str)
		if idx < 0 || int(idx) >= len(r) {
			return Value{}, errs.Parse("index %d out of range (len=%d)", idx, len(r))
		}
		return String(string(r[idx])), nil
	default:
		return Value{}, errs.Parse("cannot index value of kind %s", v.Kind)
	}
}

// DottedPath resolves a.b.c against v when v holds a JSON document. strict
// controls whether a missing key is a ParseError (evaluator context) or
// silently resolves to the empty string (renderer context).
func DottedPath(v Value, segs []string, strict bool) (Value, error) {
	if v.Kind != KindJSON {
		if strict {
			return Value{}, errs.Parse("cannot resolve path %s against non-JSON value", strings.Join(segs, "."))
		}
		return String(""), nil
	}
	node, ok := v.Doc.Path(segs)
	if !ok {
		if strict {
			return Value{}, errs.Parse("unresolved JSON path %s", strings.Join(segs, "."))
		}
		return String(""), nil
	}
	return JSON(node), nil
}
