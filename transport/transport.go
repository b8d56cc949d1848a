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

// Package transport drives a single monitored server's connection: a
// datagram socket, a persistent stream socket, or a sequence of HTTP(S)
// round-trips. It owns exactly one of these at a time for the duration of a
// probe and surfaces every failure as an *errs.Error of kind NetworkError.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"

	"github.com/packetd/probed/common"
	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/internal/bufbytes"
	"github.com/packetd/probed/internal/zerocopy"
)

// Mode selects the wire-level transport a probe drives.
type Mode uint8

const (
	ModeTCP Mode = iota
	ModeUDP
	ModeHTTP
	ModeHTTPS
)

func (m Mode) String() string {
	switch m {
	case ModeTCP:
		return "tcp"
	case ModeUDP:
		return "udp"
	case ModeHTTP:
		return "http"
	case ModeHTTPS:
		return "https"
	default:
		return "unknown"
	}
}

// ParseMode maps a persisted protocol string onto a Mode. It accepts the
// all-lowercase or all-uppercase spelling only ("tcp" or "TCP", not "Tcp").
func ParseMode(s string) (Mode, error) {
	switch s {
	case "tcp", "TCP":
		return ModeTCP, nil
	case "udp", "UDP":
		return ModeUDP, nil
	case "http", "HTTP":
		return ModeHTTP, nil
	case "https", "HTTPS":
		return ModeHTTPS, nil
	default:
		return 0, errs.Network("unknown transport mode %q", s)
	}
}

// Config is the immutable per-probe connection configuration, sourced from
// one monitored server's persisted (address, port, protocol, timeout_ms).
type Config struct {
	Mode    Mode
	Host    string
	Port    int
	Timeout time.Duration // applies independently to connect, send and recv

	// InsecureSkipVerify disables TLS certificate validation for HTTPS.
	// Certificate pinning itself is out of scope; this only exists to let
	// a script author point at a self-signed staging endpoint.
	InsecureSkipVerify bool
}

// DefaultTimeout mirrors the documented per-server default when a server's
// configuration omits timeout_ms.
const DefaultTimeout = 5000 * time.Millisecond

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Transport owns the live connection for one probe: at most one of conn
// (stream/datagram) or client (HTTP/HTTPS) is ever in use, selected by
// Config.Mode.
type Transport struct {
	cfg    Config
	conn   net.Conn
	client *http.Client
}

func New(cfg Config) *Transport {
	t := &Transport{cfg: cfg}
	if cfg.Mode == ModeHTTP || cfg.Mode == ModeHTTPS {
		t.client = &http.Client{
			Timeout: cfg.timeout(),
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
			},
		}
	}
	return t
}

// dial lazily establishes the stream/datagram connection. Stream
// connections persist across exchanges; datagram sockets are dialed once
// and reused the same way, since net.DialUDP's "connected" socket already
// restricts replies to the target address.
func (t *Transport) dial(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}

	network := "tcp"
	if t.cfg.Mode == ModeUDP {
		network = "udp"
	}

	d := net.Dialer{Timeout: t.cfg.timeout()}
	conn, err := d.DialContext(ctx, network, t.cfg.addr())
	if err != nil {
		return classifyDialErr(err)
	}
	t.conn = conn
	return nil
}

// Exchange sends the concatenation of reqs as the request side of one
// exchange and returns the reply bytes.
//
// Datagram mode sends reqs joined as a single datagram and waits for one
// reply datagram. Stream mode writes the joined request blocks in one write,
// then reads into a growing buffer until the peer closes, a read returns
// less than a full chunk, or the receive timeout elapses; the full
// accumulated buffer is handed to the response reader,
// which owns cursor-based decoding from there. A tighter read-until-cursor-
// satisfied loop would require the reader to signal back into this loop;
// nothing downstream needs that, since every response reader already fails
// cleanly on insufficient data, so accumulate-then-decode is simpler and
// matches how the stream read path has always worked in this codebase.
func (t *Transport) Exchange(ctx context.Context, reqs [][]byte) ([]byte, error) {
	if err := t.dial(ctx); err != nil {
		return nil, err
	}

	payload := joinBlocks(reqs)

	if err := t.applyDeadline(writeDeadline); err != nil {
		return nil, err
	}
	if _, err := t.conn.Write(payload); err != nil {
		return nil, classifyIOErr(err, "send")
	}

	if err := t.applyDeadline(readDeadline); err != nil {
		return nil, err
	}

	switch t.cfg.Mode {
	case ModeUDP:
		return t.recvDatagram()
	default:
		return t.recvStream()
	}
}

func (t *Transport) recvDatagram() ([]byte, error) {
	buf := make([]byte, 65535)
	n, err := t.conn.Read(buf)
	if err != nil {
		return nil, classifyIOErr(err, "recv")
	}
	return buf[:n], nil
}

// recvStream reads fixed-size chunks off the stream into a bounded
// accumulator, stopping when the peer closes the connection, a read returns
// less than a full chunk, or the read deadline trips. internal/bufbytes
// bounds total memory use; each chunk is read through internal/zerocopy and
// appended (copied) into the accumulator.
func (t *Transport) recvStream() ([]byte, error) {
	acc := bufbytes.New(common.ReadWriteBlockSize * 64)
	chunk := make([]byte, common.ReadWriteBlockSize)

	for {
		n, err := t.conn.Read(chunk)
		if n > 0 {
			zc := zerocopy.NewBuffer(chunk[:n])
			for {
				b, rerr := zc.Read(common.ReadWriteBlockSize)
				if rerr == io.EOF {
					break
				}
				acc.Write(b)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			if isTimeout(err) {
				break
			}
			return nil, classifyIOErr(err, "recv")
		}
		if n < len(chunk) {
			// short read: the peer has nothing more buffered right now
			break
		}
	}
	return acc.Clone(), nil
}

type deadlineKind uint8

const (
	writeDeadline deadlineKind = iota
	readDeadline
)

func (t *Transport) applyDeadline(kind deadlineKind) error {
	deadline := time.Now().Add(t.cfg.timeout())
	var err error
	switch kind {
	case writeDeadline:
		err = t.conn.SetWriteDeadline(deadline)
	case readDeadline:
		err = t.conn.SetReadDeadline(deadline)
	}
	if err != nil {
		return errs.WrapNetwork(err, "set deadline")
	}
	return nil
}

func joinBlocks(reqs [][]byte) []byte {
	n := 0
	for _, r := range reqs {
		n += len(r)
	}
	out := make([]byte, 0, n)
	for _, r := range reqs {
		out = append(out, r...)
	}
	return out
}

// Reset implements CONNECTION_CLOSE: closes the current stream/datagram
// socket so the next Exchange redials a fresh one.
func (t *Transport) Reset(ctx context.Context) error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return errs.WrapNetwork(err, "close connection on reset")
	}
	return nil
}

// Close releases every resource the transport holds across all modes,
// aggregating independent teardown failures rather than stopping at the
// first.
func (t *Transport) Close(ctx context.Context) error {
	var merr *multierror.Error
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
		t.conn = nil
	}
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	if merr.ErrorOrNil() != nil {
		return errs.WrapNetwork(merr.ErrorOrNil(), "close transport")
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return pkgerrors.As(err, &ne) && ne.Timeout()
}
