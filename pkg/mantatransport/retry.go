// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package mantatransport

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"syscall"
)

// RetryPolicy bounds retries over idempotent methods and classifies which
// failures are worth retrying, per §4.2.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt,
	// default 3 (so up to 4 total attempts).
	MaxRetries int
}

// DefaultRetryPolicy is the spec-pinned default: 3 retries.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3}

// ShouldRetry classifies err per §4.2's never-retried set: interrupted I/O
// (context cancellation/deadline), unknown host, connection refused, and
// TLS/certificate errors are never retried; every other net/IO error is
// retriable up to the configured limit.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return false
	}

	var certErr x509.CertificateInvalidError
	if errors.As(err, &certErr) {
		return false
	}
	var unknownAuthErr x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthErr) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" && isConnRefused(opErr) {
			return false
		}
		return true
	}

	// Any other IOException-class failure not explicitly excluded above is
	// retried, matching §4.2's "all other IOException-class failures are
	// retried up to the limit".
	return true
}

func isConnRefused(opErr *net.OpError) bool {
	return errors.Is(opErr.Err, syscall.ECONNREFUSED)
}

// MaxAttempts returns the upper bound on HTTP attempts for one request,
// retries+1; a caller stops earlier on success, so the attempts made are
// min(retries+1, attempts_until_success), the testable property in §8.
func (p RetryPolicy) MaxAttempts() int {
	return p.MaxRetries + 1
}
