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

package probe

import (
	"strconv"

	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/transport"
	"github.com/packetd/probed/value"
)

// resolveHTTPRequest turns one parsed HTTP_START block into a
// transport.HTTPRequest: its PARAM/HEADER commands resolve against env the
// same way a WRITE_STRING operand does, and its BODY_START region (if any)
// resolves into either form fields or a raw payload.
func resolveHTTPRequest(block *script.Block, env *value.Environment) (transport.HTTPRequest, error) {
	req := transport.HTTPRequest{Method: block.Method, Path: block.Path}

	for _, cmd := range block.Commands {
		switch cmd.Op {
		case "PARAM":
			kv, err := resolveKV(cmd, env)
			if err != nil {
				return transport.HTTPRequest{}, err
			}
			req.Params = append(req.Params, kv)
		case "HEADER":
			kv, err := resolveKV(cmd, env)
			if err != nil {
				return transport.HTTPRequest{}, err
			}
			req.Headers = append(req.Headers, kv)
		default:
			return transport.HTTPRequest{}, errs.Parse("http request: unsupported command %q", cmd.Op)
		}
	}

	if block.Body != nil {
		req.BodyType = block.Body.Type
		for _, cmd := range block.Body.Commands {
			switch cmd.Op {
			case "PARAM":
				kv, err := resolveKV(cmd, env)
				if err != nil {
					return transport.HTTPRequest{}, err
				}
				req.BodyForm = append(req.BodyForm, kv)
			case "DATA":
				s, err := resolveOperand(cmd.Args[0], env)
				if err != nil {
					return transport.HTTPRequest{}, err
				}
				req.BodyRaw = s
			default:
				return transport.HTTPRequest{}, errs.Parse("http request body: unsupported command %q", cmd.Op)
			}
		}
	}
	return req, nil
}

func resolveKV(cmd script.Command, env *value.Environment) (transport.KV, error) {
	key, err := resolveOperand(cmd.Args[0], env)
	if err != nil {
		return transport.KV{}, err
	}
	val, err := resolveOperand(cmd.Args[1], env)
	if err != nil {
		return transport.KV{}, err
	}
	return transport.KV{Key: key, Value: val}, nil
}

// resolveOperand resolves a PARAM/HEADER/DATA operand to its string value:
// a quoted literal or bare integer verbatim, or an identifier's current
// value read from env.
func resolveOperand(op script.Operand, env *value.Environment) (string, error) {
	switch op.Kind {
	case script.OperandString:
		return op.Str, nil
	case script.OperandInt:
		return strconv.FormatInt(op.Int, 10), nil
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
