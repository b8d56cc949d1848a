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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/probed/script"
	"github.com/packetd/probed/value"
	"github.com/packetd/probed/wire"
)

func mustParsePacket(t *testing.T, src string) *script.Block {
	t.Helper()
	scr, err := script.Parse(src)
	require.NoError(t, err)
	require.Len(t, scr.Blocks, 1)
	return &scr.Blocks[0]
}

func runBlock(t *testing.T, block *script.Block, env *value.Environment) []byte {
	t.Helper()
	b := New()
	for _, cmd := range block.Commands {
		require.NoError(t, b.Exec(cmd, env))
	}
	out, err := b.Finalize()
	require.NoError(t, err)
	return out
}

func TestBuilder_IntLengthPatch(t *testing.T) {
	block := mustParsePacket(t, `
PACKET_START
WRITE_INT PACKET_LEN
WRITE_INT 1
WRITE_INT 3
WRITE_STRING "test"
WRITE_BYTE 0x00
WRITE_BYTE 0x00
PACKET_END
`)
	out := runBlock(t, block, value.NewEnvironment())

	patched, err := wire.DecodeIntLE(out[:4])
	require.NoError(t, err)
	assert.EqualValues(t, len(out)-4, patched)
}

func TestBuilder_VarIntLengthPatchAndSplice(t *testing.T) {
	env := value.NewEnvironment()
	env.Set(value.IP, value.String("10.0.2.27"))
	env.Set(value.IPLen, value.Uint(uint64(len("10.0.2.27"))))
	env.Set(value.Host, value.String("10.0.2.27"))
	env.Set(value.Port, value.Uint(26000))

	block := mustParsePacket(t, `
PACKET_START
WRITE_VARINT PACKET_LEN
WRITE_VARINT 0
WRITE_VARINT 0x47
WRITE_VARINT IP_LEN
WRITE_STRING_LEN "HOST" IP_LEN
WRITE_SHORT_BE PORT
WRITE_STRING_LEN "pad" 120
WRITE_VARINT 1
PACKET_END
`)
	out := runBlock(t, block, env)

	n, consumed, err := wire.DecodeVarInt(out)
	require.NoError(t, err)
	assert.EqualValues(t, len(out)-consumed, n)
	// the patched length (135) no longer fits the single byte originally
	// reserved for the placeholder, so Finalize must have spliced the buffer
	assert.Equal(t, 2, consumed)

	// the hostname bytes occupy exactly IP_LEN=9 bytes
	idx := consumed + 1 /*0*/ + 1 /*0x47*/ + 1 /*varint(9)*/
	assert.Equal(t, "10.0.2.27", string(out[idx:idx+9]))

	portBytes := out[idx+9 : idx+11]
	assert.Equal(t, []byte{0x65, 0x90}, portBytes)
}

func TestBuilder_VarInt300(t *testing.T) {
	block := mustParsePacket(t, `
PACKET_START
WRITE_VARINT 300
PACKET_END
`)
	out := runBlock(t, block, value.NewEnvironment())
	assert.Equal(t, []byte{0xAC, 0x02}, out)
}

func TestBuilder_StringLenTruncatesAndPads(t *testing.T) {
	block := mustParsePacket(t, `
PACKET_START
WRITE_STRING_LEN "ab" 5
WRITE_STRING_LEN "abcdefgh" 3
PACKET_END
`)
	out := runBlock(t, block, value.NewEnvironment())
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 'a', 'b', 'c'}, out)
}

func TestBuilder_BytesLiteral(t *testing.T) {
	block := mustParsePacket(t, `
PACKET_START
WRITE_BYTES FEFD
PACKET_END
`)
	out := runBlock(t, block, value.NewEnvironment())
	assert.Equal(t, []byte{0xFE, 0xFD}, out)
}
