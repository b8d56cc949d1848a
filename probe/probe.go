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

// Package probe runs one compiled script end to end against one monitored
// server: it injects the placeholder variables, drives the transport
// exchange by exchange, feeds replies through the response reader and code
// evaluator, and renders the terminal output block into a Result.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/packetd/probed/builder"
	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/evaluator"
	"github.com/packetd/probed/render"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/transport"
	"github.com/packetd/probed/value"
)

// ServerConfig is the immutable snapshot of one monitored server's
// persisted configuration a probe run reads at start.
type ServerConfig struct {
	Name     string
	Address  string
	Port     int
	Protocol string // tcp | udp | http | https
	Timeout  time.Duration

	InsecureSkipVerify bool
}

// Result is the tuple spec's external interface names: success flag,
// elapsed time, raw response bytes, an environment snapshot, the rendered
// label fragment, and the structured error (if any).
type Result struct {
	ID        string
	Server    string
	Success   bool
	ElapsedMS int64
	Response  []byte
	Env       map[string]value.Value
	Label     string
	Err       error
}

// Run drives scr against cfg's target from start to the first terminal
// output block, returning a Result. Run itself only returns a non-nil
// error for failures that happen before a probe identity can be assigned
// (an unknown protocol string); every failure that occurs during the
// scripted exchange is instead captured in Result.Err and rendered through
// OUTPUT_ERROR, per the propagation rule that no error inside the core is
// retried or escalated past the probe boundary.
func Run(ctx context.Context, cfg ServerConfig, scr *script.Script) (*Result, error) {
	mode, err := transport.ParseMode(cfg.Protocol)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	env, err := newEnvironment(ctx, cfg)
	if err != nil {
		return finish(cfg, scr, start, env, nil, err)
	}

	tr := transport.New(transport.Config{
		Mode:               mode,
		Host:               cfg.Address,
		Port:               cfg.Port,
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	defer tr.Close(ctx)

	run := &runner{ctx: ctx, env: env, tr: tr}
	lastResp, runErr := run.exec(scr)
	return finish(cfg, scr, start, env, lastResp, runErr)
}

// newEnvironment injects the placeholders spec §3 says are resolved
// externally and scoped to a single probe: HOST (the literal hostname or
// address the operator configured), IP (the resolved numeric address),
// IP_LEN/IP_LEN_HEX (the byte length of the HOST string, the figure the
// Minecraft-style handshake example patches into the packet alongside it),
// and PORT.
func newEnvironment(ctx context.Context, cfg ServerConfig) (*value.Environment, error) {
	ip, err := resolveIP(ctx, cfg.Address)
	if err != nil {
		return nil, err
	}

	env := value.NewEnvironment()
	env.Set(value.Host, value.String(cfg.Address))
	env.Set(value.IP, value.String(ip))
	env.Set(value.IPLen, value.Uint(uint64(len(cfg.Address))))
	env.Set(value.IPLenHex, value.String(fmt.Sprintf("%x", len(cfg.Address))))
	env.Set(value.Port, value.Uint(uint64(cfg.Port)))
	return env, nil
}

func resolveIP(ctx context.Context, host string) (string, error) {
	if parsed := net.ParseIP(host); parsed != nil {
		return parsed.String(), nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return "", errs.WrapNetwork(err, "resolve host %q", host)
	}
	if len(addrs) == 0 {
		return "", errs.Network("no addresses found for host %q", host)
	}
	return addrs[0], nil
}

// runner walks one script's blocks in order, grouping consecutive request
// blocks into exchanges the way spec §3's pair-grouping rule describes.
type runner struct {
	ctx context.Context
	env *value.Environment
	tr  *transport.Transport

	pendingPacket [][]byte
	pendingHTTP   []transport.HTTPRequest
}

// exec runs every block up to and including the first terminal output
// block, returning the last raw response payload seen (binary or HTTP
// body) and the first error encountered, if any.
func (r *runner) exec(scr *script.Script) ([]byte, error) {
	var lastResp []byte

	for _, block := range scr.Blocks {
		switch block.Kind {
		case script.BlockPacket:
			buf, err := r.buildPacket(block)
			if err != nil {
				return lastResp, err
			}
			r.pendingPacket = append(r.pendingPacket, buf)

		case script.BlockHTTPRequest:
			req, err := resolveHTTPRequest(&block, r.env)
			if err != nil {
				return lastResp, err
			}
			r.pendingHTTP = append(r.pendingHTTP, req)

		case script.BlockResponse:
			resp, err := r.flushExchange(&block)
			if err != nil {
				return lastResp, err
			}
			lastResp = resp

		case script.BlockCode:
			ev := evaluator.NewCodeEvaluator(r.env)
			if err := ev.Run(block.Statements); err != nil {
				return lastResp, err
			}

		case script.BlockConnectionClose:
			if err := r.tr.Reset(r.ctx); err != nil {
				return lastResp, err
			}
			r.pendingPacket = nil
			r.pendingHTTP = nil

		case script.BlockOutputSuccess, script.BlockOutputError:
			return lastResp, nil
		}
	}
	return lastResp, nil
}

func (r *runner) buildPacket(block script.Block) ([]byte, error) {
	b := builder.New()
	for _, cmd := range block.Commands {
		if err := b.Exec(cmd, r.env); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}

// flushExchange sends every request block accumulated since the last
// exchange (or the start of the script) and runs the matching reader over
// the reply. HTTP and raw-socket exchanges never mix within one script, so
// whichever of pendingPacket/pendingHTTP is non-empty determines the mode;
// only the final HTTP round-trip's response feeds the reader when more
// than one HttpRequest block precedes a Response, since one Response block
// can only bind against one reply.
func (r *runner) flushExchange(block *script.Block) ([]byte, error) {
	switch {
	case len(r.pendingHTTP) > 0:
		var resp *transport.HTTPResponse
		for _, req := range r.pendingHTTP {
			out, err := r.tr.DoHTTP(r.ctx, req)
			if err != nil {
				return nil, err
			}
			resp = out
		}
		r.pendingHTTP = nil

		reader := evaluator.NewHTTPReader(resp)
		for _, cmd := range block.Commands {
			if err := reader.Exec(cmd, r.env); err != nil {
				return resp.Body, err
			}
		}
		return resp.Body, nil

	default:
		reqs := r.pendingPacket
		r.pendingPacket = nil
		resp, err := r.tr.Exchange(r.ctx, reqs)
		if err != nil {
			return nil, err
		}

		reader := evaluator.NewBinaryReader(resp)
		for _, cmd := range block.Commands {
			if err := reader.Exec(cmd, r.env); err != nil {
				return resp, err
			}
		}
		return resp, nil
	}
}

// finish assembles the Result and renders the terminal output block
// matching runErr's presence, exactly mirroring the propagation rule: any
// error aborts the probe and transfers to OUTPUT_ERROR (if present) with
// the error text exposed for <ERROR REASON>/ERROR substitution; success
// renders OUTPUT_SUCCESS. Render's own failure is folded into runErr's
// textual reason rather than masking whatever the script already failed on.
func finish(cfg ServerConfig, scr *script.Script, start time.Time, env *value.Environment, resp []byte, runErr error) (*Result, error) {
	res := &Result{
		ID:        uuid.New().String(),
		Server:    cfg.Name,
		Success:   runErr == nil,
		ElapsedMS: time.Since(start).Milliseconds(),
		Response:  resp,
		Err:       runErr,
	}
	if env != nil {
		res.Env = env.Snapshot()
	} else {
		env = value.NewEnvironment()
	}

	block, errText := selectOutputBlock(scr.Blocks, runErr)
	label, err := render.Render(block, env, errText)
	if err != nil && res.Err == nil {
		res.Err = err
		res.Success = false
	}
	res.Label = label
	return res, nil
}

// selectOutputBlock finds the first OUTPUT_SUCCESS block when runErr is
// nil, or the first OUTPUT_ERROR block otherwise. Neither existing is not
// itself an error: the probe still yields its success/failure result, just
// without a rendered label.
func selectOutputBlock(blocks []script.Block, runErr error) (*script.Block, string) {
	want := script.BlockOutputSuccess
	errText := ""
	if runErr != nil {
		want = script.BlockOutputError
		errText = runErr.Error()
	}
	for i := range blocks {
		if blocks[i].Kind == want {
			return &blocks[i], errText
		}
	}
	return nil, errText
}
