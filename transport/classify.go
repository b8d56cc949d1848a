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
	"crypto/tls"
	"net"

	pkgerrors "github.com/pkg/errors"

	"github.com/packetd/probed/errs"
)

// classifyDialErr turns a net.Dialer failure into the documented
// NetworkError subcases: DNS resolution, connection refused, and timeout
// are each distinguishable from the underlying *net.OpError/*net.DNSError.
func classifyDialErr(err error) *errs.Error {
	var dnsErr *net.DNSError
	if pkgerrors.As(err, &dnsErr) {
		return errs.WrapNetwork(err, "dns resolution failed for %q", dnsErr.Name)
	}

	var ne net.Error
	if pkgerrors.As(err, &ne) && ne.Timeout() {
		return errs.WrapNetwork(err, "connect timed out")
	}

	var opErr *net.OpError
	if pkgerrors.As(err, &opErr) && opErr.Op == "dial" {
		return errs.WrapNetwork(err, "connection refused or unreachable")
	}

	return errs.WrapNetwork(err, "dial failed")
}

// classifyIOErr turns a send/recv failure into a NetworkError, naming which
// half of the exchange failed.
func classifyIOErr(err error, stage string) *errs.Error {
	var ne net.Error
	if pkgerrors.As(err, &ne) && ne.Timeout() {
		return errs.WrapNetwork(err, "%s timed out", stage)
	}
	return errs.WrapNetwork(err, "%s failed", stage)
}

// classifyTLSErr reports a TLS handshake failure distinctly from a plain
// connection failure, so operators can tell "wrong cert" from "host down"
// at a glance in the rendered error template.
func classifyTLSErr(err error) *errs.Error {
	var certErr *tls.CertificateVerificationError
	if pkgerrors.As(err, &certErr) {
		return errs.WrapNetwork(err, "tls certificate verification failed")
	}
	return errs.WrapNetwork(err, "tls handshake failed")
}
