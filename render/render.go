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

// Package render selects and executes a probe's OUTPUT_SUCCESS or
// OUTPUT_ERROR block: JSON_OUTPUT parses a named variable as JSON in place,
// and RETURN interpolates the returned template into the final metric
// label fragment.
package render

import (
	"regexp"
	"strings"

	"github.com/packetd/probed/jsonval"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/value"
)

// identPath matches the longest maximal identifier-path at each scan
// position: a bare identifier, optionally extended with dotted segments.
var identPath = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*`)

// errorTokens are the literal tokens replaced with the error description in
// an OUTPUT_ERROR block only; both spellings appear in the corpus.
var errorTokens = map[string]bool{
	"<ERROR REASON>": true,
	"ERROR":          true,
}

// Render selects block (OUTPUT_SUCCESS or OUTPUT_ERROR, chosen by the
// caller based on whether the probe succeeded) and runs its commands,
// returning the rendered label fragment.
func Render(block *script.Block, env *value.Environment, errText string) (string, error) {
	if block == nil {
		return "", nil
	}

	var out string
	for _, cmd := range block.Commands {
		switch cmd.Op {
		case "JSON_OUTPUT":
			applyJSONOutput(cmd.Dest, env)
		case "RETURN":
			out = interpolate(cmd.Args[0].Str, env, errText)
		}
	}
	return out, nil
}

// applyJSONOutput attempts to parse the named variable's string value as
// JSON in place. Failure is non-fatal: the variable is left untouched as a
// string, and later dotted-path access against it yields the empty string.
func applyJSONOutput(name string, env *value.Environment) {
	v, ok := env.Get(name)
	if !ok {
		return
	}
	node, err := jsonval.Parse([]byte(v.AsString()))
	if err != nil {
		return
	}
	env.Set(name, value.JSON(node))
}

// interpolate scans template for identifier-paths and the error-reason
// sentinel, substituting each with its resolved textual value. Only
// identifiers present in env (or dotted paths resolving against one of
// them) are substituted; anything else is left as literal text.
func interpolate(template string, env *value.Environment, errText string) string {
	// "<ERROR REASON>" straddles the identifier-path regex (the angle
	// brackets and internal space aren't identifier characters), so it's
	// substituted as a whole literal before the identifier scan runs; the
	// bare "ERROR" spelling is instead recognized as one of errorTokens
	// inside the scan below.
	if errText != "" {
		template = strings.ReplaceAll(template, "<ERROR REASON>", errText)
	}

	var sb strings.Builder
	last := 0

	for _, loc := range identPath.FindAllStringIndex(template, -1) {
		start, end := loc[0], loc[1]
		sb.WriteString(template[last:start])
		token := template[start:end]

		if errText != "" && errorTokens[token] {
			sb.WriteString(errText)
		} else if resolved, ok := resolvePath(token, env); ok {
			sb.WriteString(resolved)
		} else {
			sb.WriteString(token)
		}
		last = end
	}
	sb.WriteString(template[last:])
	return sb.String()
}

// resolvePath resolves a scanned identifier-path token against env: a bare
// name, or a dotted path whose base holds a JSON document. A missing key
// resolves leniently to the empty string rather than failing, so error
// templates always emit even when upstream stages never populated a
// variable.
func resolvePath(token string, env *value.Environment) (string, bool) {
	segs := strings.Split(token, ".")
	base, ok := env.Get(segs[0])
	if !ok {
		return "", false
	}
	if len(segs) == 1 {
		return base.AsString(), true
	}
	v, err := value.DottedPath(base, segs[1:], false)
	if err != nil {
		return "", false
	}
	return v.AsString(), true
}
