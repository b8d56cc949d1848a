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
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/packetd/probed/errs"
)

// KV is one PARAM/HEADER key-value pair, order-preserved the way a script
// author wrote it.
type KV struct {
	Key   string
	Value string
}

// HTTPRequest is the resolved form of one HTTP_START block: method, path,
// query parameters, headers, and an optional body.
type HTTPRequest struct {
	Method  string
	Path    string
	Params  []KV
	Headers []KV

	// BodyType is "" (no BODY block), "FORM" or "RAW".
	BodyType string
	// BodyForm holds the resolved PARAM-style fields of a FORM body and
	// BodyRaw the resolved DATA payload of a RAW body; the body is built
	// from them at call time.
	BodyForm []KV
	BodyRaw  string
}

// HTTPResponse is the structured reply handed to the response reader:
// status, headers (every value per key; EXPECT_HEADER reads the first one
// with a case-insensitive lookup), and the raw body bytes.
type HTTPResponse struct {
	Status  int
	Headers http.Header
	Body    []byte
}

func (t *Transport) baseURL() string {
	scheme := "http"
	if t.cfg.Mode == ModeHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, t.cfg.addr())
}

// DoHTTP performs one HTTP_REQUEST block's round-trip.
func (t *Transport) DoHTTP(ctx context.Context, req HTTPRequest) (*HTTPResponse, error) {
	u, err := url.Parse(t.baseURL() + req.Path)
	if err != nil {
		return nil, errs.WrapNetwork(err, "invalid request path %q", req.Path)
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for _, p := range req.Params {
			q.Add(p.Key, p.Value)
		}
		u.RawQuery = q.Encode()
	}

	body, contentType, err := buildBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, errs.WrapNetwork(err, "build request")
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for _, h := range req.Headers {
		httpReq.Header.Set(h.Key, h.Value)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classifyHTTPErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.WrapNetwork(err, "read response body")
	}

	return &HTTPResponse{Status: resp.StatusCode, Headers: resp.Header, Body: raw}, nil
}

// buildBody resolves the BODY_START region into an io.Reader and a
// Content-Type, following the documented FORM/RAW rules: FORM emits
// application/x-www-form-urlencoded; RAW emits the DATA payload verbatim,
// guessing application/json only when the payload looks like JSON. A
// HEADER-set Content-Type always wins; DoHTTP applies headers after this,
// so that override happens naturally.
func buildBody(req HTTPRequest) (io.Reader, string, error) {
	switch req.BodyType {
	case "":
		return nil, "", nil
	case "FORM":
		form := url.Values{}
		for _, p := range req.BodyForm {
			form.Add(p.Key, p.Value)
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	case "RAW":
		contentType := "text/plain"
		trimmed := strings.TrimSpace(req.BodyRaw)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			contentType = "application/json"
		}
		return bytes.NewReader([]byte(req.BodyRaw)), contentType, nil
	default:
		return nil, "", errs.Parse("unknown HTTP body type %q", req.BodyType)
	}
}

func classifyHTTPErr(err error) *errs.Error {
	var ne interface{ Timeout() bool }
	if pkgerrors.As(err, &ne) && ne.Timeout() {
		return errs.WrapNetwork(err, "http request timed out")
	}
	var certErr *tls.CertificateVerificationError
	if pkgerrors.As(err, &certErr) {
		return classifyTLSErr(err)
	}
	return errs.WrapNetwork(err, "http request failed")
}
