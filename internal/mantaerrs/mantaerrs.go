// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

// Package mantaerrs defines the error taxonomy shared across the client:
// five failure domains, each its own errs.Class, carrying a small context
// map of string annotations instead of mutating a shared exception.
package mantaerrs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/errs"
)

// The five error classes, one per failure domain. Every package that can
// fail wraps the underlying cause with the class that matches why it
// failed, not where the code happens to live.
var (
	// Crypto covers signing and keying failures: unreadable keys,
	// unsupported algorithms, cipher construction failures.
	Crypto = errs.Class("crypto error")
	// HTTPResponse covers non-success status codes returned by the store.
	HTTPResponse = errs.Class("http response error")
	// Checksum covers MD5 mismatches between the client digest and the
	// server-reported checksum.
	Checksum = errs.Class("checksum error")
	// Multipart covers MPU protocol violations: malformed JSON responses,
	// missing fields, state-machine misuse.
	Multipart = errs.Class("multipart error")
	// IO covers transport failures: dial errors, read/write errors,
	// context cancellation surfaced on a blocked goroutine.
	IO = errs.Class("io error")
)

// Context is an unordered set of named string annotations attached to an
// error; String sorts them by key when rendering.
// Values that might contain secrets (keys, passphrases) must never be
// stored here; callers pass "?" instead.
type Context map[string]string

// String renders the context deterministically (sorted keys) so error
// messages are stable across runs, which test assertions rely on.
func (c Context) String() string {
	if len(c) == 0 {
		return ""
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, c[k]))
	}
	return strings.Join(parts, " ")
}

// Annotated wraps err with class, attaching ctx as contextual annotations.
// It is the one non-destructive constructor every caller should use
// instead of mutating a shared exception in place.
func Annotated(class *errs.Class, err error, ctx Context) error {
	if err == nil {
		return nil
	}
	if s := ctx.String(); s != "" {
		return class.New("%s (%s)", err.Error(), s)
	}
	return class.Wrap(err)
}

// HTTPError is additional structure for HTTPResponse failures: status,
// reason phrase, a truncated response body, and the store's request id,
// all of which §4.12 requires every HTTP-classified error to carry.
type HTTPError struct {
	Method        string
	URL           string
	StatusCode    int
	ReasonPhrase  string
	RequestID     string
	BodySnippet   string
	ResponseCtype string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d %s (request-id=%s): %s",
		e.Method, e.URL, e.StatusCode, e.ReasonPhrase, e.RequestID, e.BodySnippet)
}

// NewHTTPError builds an HTTPResponse-classified error carrying the full
// set of annotations §4.12 calls for.
func NewHTTPError(method, url string, status int, reason, requestID, bodySnippet, ctype string) error {
	return HTTPResponse.Wrap(&HTTPError{
		Method:        method,
		URL:           url,
		StatusCode:    status,
		ReasonPhrase:  reason,
		RequestID:     requestID,
		BodySnippet:   bodySnippet,
		ResponseCtype: ctype,
	})
}

// AsHTTPError unwraps err looking for an *HTTPError, for callers that need
// to branch on status code (e.g. treating 404 as "not found" rather than
// a hard failure).
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// ChecksumError carries both the client-computed and server-reported MD5
// values so the mismatch is diagnosable without re-running the upload.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: client=%s server=%s", e.Path, e.Expected, e.Actual)
}

// NewChecksumError wraps a ChecksumError in the Checksum class.
func NewChecksumError(path, expected, actual string) error {
	return Checksum.Wrap(&ChecksumError{Path: path, Expected: expected, Actual: actual})
}

// Truncate shortens a response body for error annotation so that large
// bodies don't bloat error messages or leak unrelated payload data.
func Truncate(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "...(truncated)"
}
