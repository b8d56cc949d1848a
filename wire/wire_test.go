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

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarInt300(t *testing.T) {
	b := EncodeVarInt(300)
	assert.Equal(t, []byte{0xAC, 0x02}, b)

	v, n, err := DecodeVarInt(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)
	assert.Equal(t, 2, n)
}

func TestVarIntRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 16384, 1 << 20, 1<<63 - 1}
	for _, n := range cases {
		b := EncodeVarInt(n)
		assert.LessOrEqual(t, len(b), MaxVarintBytes)
		got, consumed, err := DecodeVarInt(b)
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, len(b), consumed)
	}
}

func TestVarIntTooLong(t *testing.T) {
	malformed := make([]byte, 11)
	for i := range malformed {
		malformed[i] = 0x80
	}
	_, _, err := DecodeVarInt(malformed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "varint too long")
}

func TestEndianSymmetry(t *testing.T) {
	v := uint16(0x1234)
	be := EncodeShortBE(v)
	gotBE, err := DecodeShortBE(be)
	require.NoError(t, err)
	assert.Equal(t, v, gotBE)

	le := EncodeShortLE(v)
	gotLE, err := DecodeShortLE(le)
	require.NoError(t, err)
	assert.Equal(t, v, gotLE)

	// Swapping endianness breaks it for non-palindromic values.
	assert.NotEqual(t, be, le)
	_, err = DecodeShortLE(be)
	require.NoError(t, err) // decodes without error, but to a different value
	gotWrong, _ := DecodeShortLE(be)
	assert.NotEqual(t, v, gotWrong)
}

func TestStringRoundTrip(t *testing.T) {
	s := "hello probe"
	encoded := EncodeStringNull(s)
	decoded, n, err := DecodeStringNull(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
	assert.Equal(t, len(encoded), n)
}

func TestStringLenAlwaysExactN(t *testing.T) {
	n := 9
	b := EncodeStringLen("10.0.2.27", n)
	assert.Len(t, b, n)

	b = EncodeStringLen("short", n)
	assert.Len(t, b, n)

	b = EncodeStringLen("this string is far too long", n)
	assert.Len(t, b, n)
}

func TestDecodeStringLenStripsTrailingNulls(t *testing.T) {
	b := EncodeStringLen("hi", 5)
	s, err := DecodeStringLen(b, 5)
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
}

func TestHexLiteralOddDigitsRejected(t *testing.T) {
	_, err := EncodeBytes("ABC")
	require.Error(t, err)
}

func TestHexLiteralAcceptsSpacesAndPrefix(t *testing.T) {
	b, err := EncodeBytes("0x 01 02 FE")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0xFE}, b)
}

func TestInsufficientDataNeverPanics(t *testing.T) {
	_, err := DecodeIntLE(nil)
	require.Error(t, err)

	_, _, err = DecodeStringNull([]byte{0x01, 0x02})
	require.Error(t, err)
}
