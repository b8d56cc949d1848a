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

package evaluator

import (
	"unicode/utf8"

	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/jsonval"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/transport"
	"github.com/packetd/probed/value"
)

// HTTPReader wraps one HTTP exchange's structured response for the
// EXPECT_STATUS/EXPECT_HEADER/READ_BODY/READ_BODY_JSON commands.
type HTTPReader struct {
	resp *transport.HTTPResponse
}

func NewHTTPReader(resp *transport.HTTPResponse) *HTTPReader {
	return &HTTPReader{resp: resp}
}

func (r *HTTPReader) Exec(cmd script.Command, env *value.Environment) error {
	switch cmd.Op {
	case "EXPECT_STATUS":
		want, err := resolveLength(cmd.Args[0], env)
		if err != nil {
			return err
		}
		if r.resp.Status != want {
			return errs.Validation("EXPECT_STATUS: expected %d, got %d", want, r.resp.Status)
		}

	case "EXPECT_HEADER":
		key, val := cmd.Args[0], cmd.Args[1]
		got := r.resp.Headers.Get(key.Str)
		want := val.Str
		if val.Kind == script.OperandIdent {
			v, ok := env.Get(val.Str)
			if !ok {
				return errs.Parse("undefined variable %q", val.Str)
			}
			want = v.AsString()
		}
		if got != want {
			return errs.Validation("EXPECT_HEADER %s: expected %q, got %q", key.Str, want, got)
		}

	case "READ_BODY":
		if !utf8.Valid(r.resp.Body) {
			return errs.Parse("READ_BODY: response body is not valid UTF-8")
		}
		env.Set(cmd.Dest, value.String(string(r.resp.Body)))

	case "READ_BODY_JSON":
		node, err := jsonval.Parse(r.resp.Body)
		if err != nil {
			return err
		}
		env.Set(cmd.Dest, value.JSON(node))

	default:
		return errs.Parse("http reader: unsupported command %q", cmd.Op)
	}
	return nil
}
