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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/probed/jsonval"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/value"
)

func parseCode(t *testing.T, src string) *script.Block {
	t.Helper()
	scr, err := script.Parse(src)
	require.NoError(t, err)
	require.Len(t, scr.Blocks, 1)
	return &scr.Blocks[0]
}

func TestEvaluator_JSONPathResolution(t *testing.T) {
	block := parseCode(t, `
CODE_START
a = JSON_PAYLOAD.version.protocol
b = JSON_PAYLOAD.players.online
CODE_END
`)
	doc, err := jsonval.Parse([]byte(`{"version":{"protocol":773},"players":{"online":10,"max":20}}`))
	require.NoError(t, err)

	env := value.NewEnvironment()
	env.Set("JSON_PAYLOAD", value.JSON(doc))

	ev := NewCodeEvaluator(env)
	require.NoError(t, ev.Run(block.Statements))

	a, _ := env.Get("a")
	b, _ := env.Get("b")
	assert.Equal(t, "773", a.AsString())
	assert.Equal(t, "10", b.AsString())
}

func TestEvaluator_SplitReplacePipeline(t *testing.T) {
	block := parseCode(t, `
CODE_START
parts = SPLIT(s, "RAM: ")
tail = parts[1]
halves = SPLIT(tail, "/")
first = halves[0]
cleaned = REPLACE(first, "M", "")
INT result = cleaned
CODE_END
`)
	env := value.NewEnvironment()
	env.Set("s", value.String("RAM: 928M/1120M (max. 10240M)"))

	ev := NewCodeEvaluator(env)
	require.NoError(t, ev.Run(block.Statements))

	result, ok := env.Get("result")
	require.True(t, ok)
	i, _ := result.AsInt()
	assert.EqualValues(t, 928, i)
}

func TestEvaluator_ForLoopWithBreak(t *testing.T) {
	block := parseCode(t, `
CODE_START
found = "no"
FOR item IN items:
  IF item == "target":
    found = "yes"
    BREAK
CODE_END
`)
	env := value.NewEnvironment()
	env.Set("items", value.Sequence([]value.Value{
		value.String("a"), value.String("target"), value.String("b"),
	}))

	ev := NewCodeEvaluator(env)
	require.NoError(t, ev.Run(block.Statements))

	found, _ := env.Get("found")
	assert.Equal(t, "yes", found.AsString())

	item, ok := env.Get("item")
	require.True(t, ok)
	assert.Equal(t, "target", item.AsString())
}

func TestEvaluator_ForOverEmptySequenceRunsZeroIterations(t *testing.T) {
	block := parseCode(t, `
CODE_START
count = 0
FOR item IN items:
  count = 1
CODE_END
`)
	env := value.NewEnvironment()
	env.Set("items", value.Sequence(nil))

	ev := NewCodeEvaluator(env)
	require.NoError(t, ev.Run(block.Statements))

	count, _ := env.Get("count")
	i, _ := count.AsInt()
	assert.EqualValues(t, 0, i)
}

func TestEvaluator_IfElseIfElseChain(t *testing.T) {
	block := parseCode(t, `
CODE_START
IF x == 1:
  label = "one"
ELSE IF x == 2:
  label = "two"
ELSE:
  label = "other"
CODE_END
`)
	env := value.NewEnvironment()
	env.Set("x", value.Int(2))

	ev := NewCodeEvaluator(env)
	require.NoError(t, ev.Run(block.Statements))

	label, _ := env.Get("label")
	assert.Equal(t, "two", label.AsString())
}

func TestEvaluator_NumericPrefixCoercion(t *testing.T) {
	block := parseCode(t, `
CODE_START
INT n = mem
CODE_END
`)
	env := value.NewEnvironment()
	env.Set("mem", value.String("616M"))

	ev := NewCodeEvaluator(env)
	require.NoError(t, ev.Run(block.Statements))

	n, _ := env.Get("n")
	i, _ := n.AsInt()
	assert.EqualValues(t, 616, i)
}

func TestEvaluator_IndexOutOfRangeIsError(t *testing.T) {
	block := parseCode(t, `
CODE_START
bad = items[5]
CODE_END
`)
	env := value.NewEnvironment()
	env.Set("items", value.Sequence([]value.Value{value.Int(1)}))

	ev := NewCodeEvaluator(env)
	require.Error(t, ev.Run(block.Statements))
}
