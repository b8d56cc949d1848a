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
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_DoHTTP_FormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "name=probed", string(body))
		w.Header().Set("X-Probe", "ok")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"up"}`))
	}))
	defer srv.Close()

	host, port := splitPort(t, srv.Listener.Addr().String())
	tr := New(Config{Mode: ModeHTTP, Host: host, Port: port, Timeout: 2 * time.Second})
	defer tr.Close(context.Background())

	resp, err := tr.DoHTTP(context.Background(), HTTPRequest{
		Method:   http.MethodPost,
		Path:     "/check",
		BodyType: "FORM",
		BodyForm: []KV{{Key: "name", Value: "probed"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "ok", resp.Headers.Get("X-Probe"))
	assert.Equal(t, `{"status":"up"}`, string(resp.Body))
}

func TestTransport_DoHTTP_RawJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	host, port := splitPort(t, srv.Listener.Addr().String())
	tr := New(Config{Mode: ModeHTTP, Host: host, Port: port, Timeout: 2 * time.Second})
	defer tr.Close(context.Background())

	resp, err := tr.DoHTTP(context.Background(), HTTPRequest{
		Method:   http.MethodPost,
		Path:     "/submit",
		BodyType: "RAW",
		BodyRaw:  `{"ping":true}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
}

func TestTransport_DoHTTP_HeaderOverridesContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/xml", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := splitPort(t, srv.Listener.Addr().String())
	tr := New(Config{Mode: ModeHTTP, Host: host, Port: port, Timeout: 2 * time.Second})
	defer tr.Close(context.Background())

	resp, err := tr.DoHTTP(context.Background(), HTTPRequest{
		Method:   http.MethodPost,
		Path:     "/xml",
		BodyType: "RAW",
		BodyRaw:  `{"a":1}`,
		Headers:  []KV{{Key: "Content-Type", Value: "text/xml"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestTransport_DoHTTP_QueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := splitPort(t, srv.Listener.Addr().String())
	tr := New(Config{Mode: ModeHTTP, Host: host, Port: port, Timeout: 2 * time.Second})
	defer tr.Close(context.Background())

	resp, err := tr.DoHTTP(context.Background(), HTTPRequest{
		Method: http.MethodGet,
		Path:   "/list",
		Params: []KV{{Key: "page", Value: "1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}
