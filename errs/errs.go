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

// Package errs defines the four disjoint error kinds a probe can fail with:
// SyntaxError, NetworkError, ValidationError and ParseError. Every stage of
// the engine (parser, builder, transport, reader, evaluator, renderer)
// reports failures through these constructors so the probe engine can
// uniformly recover the error text for the <ERROR REASON> substitution.
package errs

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindSyntax Kind = iota
	KindNetwork
	KindValidation
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "SyntaxError"
	case KindNetwork:
		return "NetworkError"
	case KindValidation:
		return "ValidationError"
	case KindParse:
		return "ParseError"
	default:
		return "Error"
	}
}

// Error is the concrete error type raised by every engine stage.
type Error struct {
	Kind Kind
	Line int // 1-based, only meaningful for KindSyntax
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindSyntax && e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Kind, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Syntax(line int, format string, args ...any) *Error {
	return &Error{Kind: KindSyntax, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func Network(format string, args ...any) *Error {
	return &Error{Kind: KindNetwork, Msg: fmt.Sprintf(format, args...)}
}

func WrapNetwork(err error, format string, args ...any) *Error {
	return &Error{Kind: KindNetwork, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Parse(format string, args ...any) *Error {
	return &Error{Kind: KindParse, Msg: fmt.Sprintf(format, args...)}
}

// InsufficientData is the canonical ParseError raised whenever a reader or
// decoder runs out of bytes before satisfying a command.
func InsufficientData(need, have int) *Error {
	return Parse("insufficient data: need %d byte(s), have %d", need, have)
}

// As reports whether err (or any error it wraps) is an *Error of kind k.
func As(err error, k Kind) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == k {
		return e, true
	}
	return nil, false
}
