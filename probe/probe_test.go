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
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/probed/script"
)

func splitPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestProbe_TCPHandshakeSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 8)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte{0x00, 0x00, 0x00, 0x00, 't', 'e', 's', 't', 0x00})
	}()

	host, port := splitPort(t, ln.Addr().String())
	scr, err := script.Parse(`
PACKET_START
WRITE_STRING_LEN "ping" 8
PACKET_END
RESPONSE_START
READ_INT len
READ_STRING_NULL name
RESPONSE_END
OUTPUT_SUCCESS
RETURN "name=name"
OUTPUT_END
`)
	require.NoError(t, err)

	cfg := ServerConfig{Name: "tcp-probe", Address: host, Port: port, Protocol: "tcp", Timeout: 2 * time.Second}
	res, err := Run(context.Background(), cfg, scr)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "test=test", res.Label)
	assert.Nil(t, res.Err)
}

func TestProbe_ValidationFailureRendersOutputError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte{0xFF, 0xFD})
	}()

	host, port := splitPort(t, ln.Addr().String())
	scr, err := script.Parse(`
PACKET_START
WRITE_BYTE 0x01
PACKET_END
RESPONSE_START
EXPECT_BYTE 0xFE
RESPONSE_END
OUTPUT_ERROR
RETURN "probe failed: <ERROR REASON>"
OUTPUT_END
`)
	require.NoError(t, err)

	cfg := ServerConfig{Name: "tcp-probe", Address: host, Port: port, Protocol: "tcp", Timeout: 2 * time.Second}
	res, err := Run(context.Background(), cfg, scr)
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Error(t, res.Err)
	assert.Contains(t, res.Label, "0xFE")
	assert.Contains(t, res.Label, "0xFF")
}

func TestProbe_HTTPJSONBodySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	host, port := splitPort(t, srv.Listener.Addr().String())
	scr, err := script.Parse(`
HTTP_START REQUEST GET /health
HTTP_END
RESPONSE_START
EXPECT_STATUS 200
READ_BODY_JSON payload
RESPONSE_END
CODE_START
status = payload.status
CODE_END
OUTPUT_SUCCESS
RETURN "status=status"
OUTPUT_END
`)
	require.NoError(t, err)

	cfg := ServerConfig{Name: "http-probe", Address: host, Port: port, Protocol: "http", Timeout: 2 * time.Second}
	res, err := Run(context.Background(), cfg, scr)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ok=ok", res.Label)
}

func TestProbe_UnknownProtocolIsRejected(t *testing.T) {
	scr, err := script.Parse(`
OUTPUT_SUCCESS
RETURN "ok"
OUTPUT_END
`)
	require.NoError(t, err)

	cfg := ServerConfig{Name: "bad-proto", Address: "127.0.0.1", Port: 1, Protocol: "carrier-pigeon"}
	_, err = Run(context.Background(), cfg, scr)
	require.Error(t, err)
}
