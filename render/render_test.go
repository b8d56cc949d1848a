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

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/probed/script"
	"github.com/packetd/probed/value"
)

func parseOutputBlock(t *testing.T, src string) *script.Block {
	t.Helper()
	scr, err := script.Parse(src)
	require.NoError(t, err)
	require.Len(t, scr.Blocks, 1)
	return &scr.Blocks[0]
}

func TestRender_JSONPathScenario(t *testing.T) {
	block := parseOutputBlock(t, `
OUTPUT_SUCCESS
JSON_OUTPUT JSON_PAYLOAD
RETURN "protocol=JSON_PAYLOAD.version.protocol, players=JSON_PAYLOAD.players.online"
OUTPUT_END
`)
	env := value.NewEnvironment()
	env.Set("JSON_PAYLOAD", value.String(`{"version":{"protocol":773},"players":{"online":10,"max":20}}`))

	out, err := Render(block, env, "")
	require.NoError(t, err)
	assert.Equal(t, "protocol=773, players=10", out)
}

func TestRender_ErrorReasonSubstitution(t *testing.T) {
	block := parseOutputBlock(t, `
OUTPUT_ERROR
RETURN "probe failed: <ERROR REASON>"
OUTPUT_END
`)
	env := value.NewEnvironment()
	out, err := Render(block, env, "ValidationError: expected 0xFE, got 0xFF")
	require.NoError(t, err)
	assert.Equal(t, "probe failed: ValidationError: expected 0xFE, got 0xFF", out)
}

func TestRender_BareErrorTokenSubstitution(t *testing.T) {
	block := parseOutputBlock(t, `
OUTPUT_ERROR
RETURN "reason=ERROR"
OUTPUT_END
`)
	env := value.NewEnvironment()
	out, err := Render(block, env, "timeout")
	require.NoError(t, err)
	assert.Equal(t, "reason=timeout", out)
}

func TestRender_UnresolvedIdentifierLeftLiteral(t *testing.T) {
	block := parseOutputBlock(t, `
OUTPUT_SUCCESS
RETURN "host=HOST, missing=NOT_SET"
OUTPUT_END
`)
	env := value.NewEnvironment()
	env.Set(value.Host, value.String("example.com"))

	out, err := Render(block, env, "")
	require.NoError(t, err)
	assert.Equal(t, "host=example.com, missing=NOT_SET", out)
}

func TestRender_JSONOutputNonFatalOnParseFailure(t *testing.T) {
	block := parseOutputBlock(t, `
OUTPUT_SUCCESS
JSON_OUTPUT payload
RETURN "raw=payload, path=payload.field"
OUTPUT_END
`)
	env := value.NewEnvironment()
	env.Set("payload", value.String("not json"))

	out, err := Render(block, env, "")
	require.NoError(t, err)
	// JSON_OUTPUT's parse failure leaves payload as a plain string: a bare
	// reference still resolves to its original text, but a dotted path
	// against it yields the empty string rather than failing the render.
	assert.Equal(t, "raw=not json, path=", out)
}
