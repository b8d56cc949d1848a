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

package script

import (
	"strconv"
	"strings"

	"github.com/packetd/probed/errs"
)

// writerOps is every WRITE_* op, mapped to the number of trailing operands
// it takes (the destination var for readers doesn't apply here).
var writerOps = map[string]int{
	"WRITE_BYTE":       1,
	"WRITE_SHORT":      1,
	"WRITE_SHORT_BE":   1,
	"WRITE_INT":        1,
	"WRITE_INT_BE":     1,
	"WRITE_VARINT":     1,
	"WRITE_STRING":     1,
	"WRITE_STRING_LEN": 2,
	"WRITE_BYTES":      1,
}

// readerOps is every binary READ_* op mapped to its operand count after
// the destination variable. SKIP_BYTES is handled separately in
// parseReadCommand, and READ_BODY/READ_BODY_JSON in parseHTTPAuxCommand.
var readerOps = map[string]int{
	"READ_BYTE":        0,
	"READ_SHORT":       0,
	"READ_SHORT_BE":    0,
	"READ_INT":         0,
	"READ_INT_BE":      0,
	"READ_VARINT":      0,
	"READ_STRING":      1,
	"READ_STRING_NULL": 0,
}

// literalRanges bounds the literal integer operand of a writer, matching
// the parser's documented arity/range checks.
var literalRanges = map[string][2]int64{
	"WRITE_BYTE":     {0, 255},
	"WRITE_SHORT":    {0, 65535},
	"WRITE_SHORT_BE": {0, 65535},
	"WRITE_INT":      {0, 1<<32 - 1},
	"WRITE_INT_BE":   {0, 1<<32 - 1},
}

// packetLenAllowed is the set of writers PACKET_LEN may be used with.
var packetLenAllowed = map[string]bool{
	"WRITE_INT":    true,
	"WRITE_INT_BE": true,
	"WRITE_VARINT": true,
}

var identPatternFirst = func(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
var identPatternRest = func(c byte) bool { return identPatternFirst(c) || (c >= '0' && c <= '9') }

func validIdent(s string) bool {
	if s == "" || !identPatternFirst(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !identPatternRest(s[i]) {
			return false
		}
	}
	return true
}

// parseOperand classifies one token as an int literal, hex literal
// (WRITE_BYTES/EXPECT_MAGIC only), or identifier/string, validating it
// against identifier syntax when it isn't quoted and isn't numeric.
func parseOperand(lineNo int, t token, asHex bool) (Operand, error) {
	if asHex {
		return Operand{Kind: OperandHex, Str: t.Text}, nil
	}
	if t.Quoted {
		return Operand{Kind: OperandString, Str: t.Text}, nil
	}
	if n, ok := parseDecimalOrHex(t.Text); ok {
		return Operand{Kind: OperandInt, Int: n}, nil
	}
	if t.Text == "PACKET_LEN" || validIdent(t.Text) {
		return Operand{Kind: OperandIdent, Str: t.Text}, nil
	}
	return Operand{}, errs.Syntax(lineNo, "invalid operand %q", t.Text)
}

func parseDecimalOrHex(s string) (int64, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		return int64(n), true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// checkLiteralRange enforces the documented literal bounds (BYTE in
// [0,255], SHORT in [0,65535], INT in [0,2^32-1]) when the operand is a
// literal rather than a symbolic reference.
func checkLiteralRange(lineNo int, op string, operand Operand) error {
	if operand.Kind != OperandInt {
		return nil
	}
	r, ok := literalRanges[op]
	if !ok {
		return nil
	}
	if operand.Int < r[0] || operand.Int > r[1] {
		return errs.Syntax(lineNo, "%s literal %d out of range [%d,%d]", op, operand.Int, r[0], r[1])
	}
	return nil
}

// parseWriteCommand parses a WRITE_* line. toks excludes the op token.
func parseWriteCommand(lineNo int, op string, toks []token) (Command, error) {
	arity, ok := writerOps[op]
	if !ok {
		return Command{}, errs.Syntax(lineNo, "unknown write command %q", op)
	}
	if len(toks) != arity {
		return Command{}, errs.Syntax(lineNo, "%s expects %d operand(s), got %d", op, arity, len(toks))
	}

	cmd := Command{Op: op, Line: lineNo}
	for i, t := range toks {
		asHex := op == "WRITE_BYTES"
		operand, err := parseOperand(lineNo, t, asHex)
		if err != nil {
			return Command{}, err
		}
		if operand.Kind == OperandIdent && operand.Str == "PACKET_LEN" && !packetLenAllowed[op] {
			return Command{}, errs.Syntax(lineNo, "PACKET_LEN is not accepted by %s", op)
		}
		if i == 0 {
			if err := checkLiteralRange(lineNo, op, operand); err != nil {
				return Command{}, err
			}
		}
		cmd.Args = append(cmd.Args, operand)
	}
	return cmd, nil
}

// parseReadCommand parses a READ_*/SKIP_BYTES line. toks excludes the op
// token.
func parseReadCommand(lineNo int, op string, toks []token) (Command, error) {
	if op == "SKIP_BYTES" {
		if len(toks) != 1 {
			return Command{}, errs.Syntax(lineNo, "SKIP_BYTES expects 1 operand, got %d", len(toks))
		}
		operand, err := parseOperand(lineNo, toks[0], false)
		if err != nil {
			return Command{}, err
		}
		return Command{Op: op, Line: lineNo, Args: []Operand{operand}}, nil
	}

	extra, ok := readerOps[op]
	if !ok {
		return Command{}, errs.Syntax(lineNo, "unknown read command %q", op)
	}
	if len(toks) != 1+extra {
		return Command{}, errs.Syntax(lineNo, "%s expects %d operand(s), got %d", op, 1+extra, len(toks))
	}
	if toks[0].Quoted || !validIdent(toks[0].Text) {
		return Command{}, errs.Syntax(lineNo, "%s destination must be a bare identifier", op)
	}
	cmd := Command{Op: op, Line: lineNo, Dest: toks[0].Text}
	for _, t := range toks[1:] {
		operand, err := parseOperand(lineNo, t, false)
		if err != nil {
			return Command{}, err
		}
		cmd.Args = append(cmd.Args, operand)
	}
	return cmd, nil
}

// parseValidatorCommand parses EXPECT_BYTE/EXPECT_MAGIC/EXPECT_STATUS/
// EXPECT_HEADER. toks excludes the op token.
func parseValidatorCommand(lineNo int, op string, toks []token) (Command, error) {
	arities := map[string]int{
		"EXPECT_BYTE":   1,
		"EXPECT_MAGIC":  1,
		"EXPECT_STATUS": 1,
		"EXPECT_HEADER": 2,
	}
	arity, ok := arities[op]
	if !ok {
		return Command{}, errs.Syntax(lineNo, "unknown validator %q", op)
	}
	if len(toks) != arity {
		return Command{}, errs.Syntax(lineNo, "%s expects %d operand(s), got %d", op, arity, len(toks))
	}
	cmd := Command{Op: op, Line: lineNo}
	for _, t := range toks {
		operand, err := parseOperand(lineNo, t, op == "EXPECT_MAGIC")
		if err != nil {
			return Command{}, err
		}
		cmd.Args = append(cmd.Args, operand)
	}
	return cmd, nil
}

// parseHTTPAuxCommand parses PARAM/HEADER/DATA/READ_BODY/READ_BODY_JSON.
func parseHTTPAuxCommand(lineNo int, op string, toks []token) (Command, error) {
	switch op {
	case "PARAM", "HEADER":
		if len(toks) != 2 {
			return Command{}, errs.Syntax(lineNo, "%s expects 2 operands, got %d", op, len(toks))
		}
		key, err := parseOperand(lineNo, toks[0], false)
		if err != nil {
			return Command{}, err
		}
		val, err := parseOperand(lineNo, toks[1], false)
		if err != nil {
			return Command{}, err
		}
		return Command{Op: op, Line: lineNo, Args: []Operand{key, val}}, nil

	case "DATA":
		if len(toks) != 1 {
			return Command{}, errs.Syntax(lineNo, "DATA expects 1 operand, got %d", len(toks))
		}
		val, err := parseOperand(lineNo, toks[0], false)
		if err != nil {
			return Command{}, err
		}
		return Command{Op: op, Line: lineNo, Args: []Operand{val}}, nil

	case "READ_BODY", "READ_BODY_JSON":
		if len(toks) != 1 || toks[0].Quoted || !validIdent(toks[0].Text) {
			return Command{}, errs.Syntax(lineNo, "%s expects a bare destination identifier", op)
		}
		return Command{Op: op, Line: lineNo, Dest: toks[0].Text}, nil

	default:
		return Command{}, errs.Syntax(lineNo, "unknown HTTP command %q", op)
	}
}

// parseOutputCommand parses JSON_OUTPUT/RETURN.
func parseOutputCommand(lineNo int, op string, toks []token) (Command, error) {
	switch op {
	case "JSON_OUTPUT":
		if len(toks) != 1 || toks[0].Quoted || !validIdent(toks[0].Text) {
			return Command{}, errs.Syntax(lineNo, "JSON_OUTPUT expects a bare variable identifier")
		}
		return Command{Op: op, Line: lineNo, Dest: toks[0].Text}, nil
	case "RETURN":
		if len(toks) != 1 {
			return Command{}, errs.Syntax(lineNo, "RETURN expects exactly 1 operand, got %d", len(toks))
		}
		return Command{Op: op, Line: lineNo, Args: []Operand{{Kind: OperandString, Str: toks[0].Text}}}, nil
	default:
		return Command{}, errs.Syntax(lineNo, "unknown output command %q", op)
	}
}
