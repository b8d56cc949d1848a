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

package transport

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestTransport_TCPExchange(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte("pong!"))
	}()

	host, port := splitPort(t, ln.Addr().String())
	tr := New(Config{Mode: ModeTCP, Host: host, Port: port, Timeout: 2 * time.Second})
	defer tr.Close(context.Background())

	out, err := tr.Exchange(context.Background(), [][]byte{[]byte("ping!")})
	require.NoError(t, err)
	assert.Equal(t, "pong!", string(out))
}

func TestTransport_UDPExchange(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	go func() {
		buf := make([]byte, 1024)
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		_, _ = pc.WriteTo(buf[:n], addr)
	}()

	host, port := splitPort(t, pc.LocalAddr().String())
	tr := New(Config{Mode: ModeUDP, Host: host, Port: port, Timeout: 2 * time.Second})
	defer tr.Close(context.Background())

	out, err := tr.Exchange(context.Background(), [][]byte{[]byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestTransport_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port := splitPort(t, ln.Addr().String())
	require.NoError(t, ln.Close())

	tr := New(Config{Mode: ModeTCP, Host: host, Port: port, Timeout: 500 * time.Millisecond})
	_, err = tr.Exchange(context.Background(), [][]byte{[]byte("x")})
	require.Error(t, err)
}

func TestTransport_ResetRedials(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{}, 2)
	go func() {
		for i := 0; i < 2; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- struct{}{}
			go func(c net.Conn) {
				buf := make([]byte, 1)
				_, _ = c.Read(buf)
				_, _ = c.Write([]byte("ok"))
				c.Close()
			}(conn)
		}
	}()

	host, port := splitPort(t, ln.Addr().String())
	tr := New(Config{Mode: ModeTCP, Host: host, Port: port, Timeout: 2 * time.Second})
	defer tr.Close(context.Background())

	_, err = tr.Exchange(context.Background(), [][]byte{[]byte("a")})
	require.NoError(t, err)
	<-accepted

	require.NoError(t, tr.Reset(context.Background()))

	_, err = tr.Exchange(context.Background(), [][]byte{[]byte("b")})
	require.NoError(t, err)
	<-accepted
}
