// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

// Package httpclient implements the signed verb-level HTTP helper: head,
// get, delete, post, put, with status-code contracts and optional
// checksum validation on put, per §4.4.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/joyent/go-manta/internal/mantaerrs"
	"github.com/joyent/go-manta/pkg/digest"
	"github.com/joyent/go-manta/pkg/mantatransport"
)

// Signer signs an outbound request in place, setting its Authorization
// header. Implemented by *httpsign.Signer; declared as an interface here so
// this package doesn't import httpsign just for one method.
type Signer interface {
	Sign(req *http.Request) error
}

// Client issues signed verb-level requests against the store.
type Client struct {
	HTTP            *http.Client
	Signer          Signer
	BaseURL         string
	ValidateUploads bool
	// RetryPolicy governs how many times a request is retried on a
	// retriable transport failure, re-signing (and re-dating) each
	// attempt, per §4.2. Zero value is replaced with
	// mantatransport.DefaultRetryPolicy by New.
	RetryPolicy mantatransport.RetryPolicy
}

// New builds a Client. httpClient is typically the result of
// mantatransport.New; signer is typically an *httpsign.Signer.
func New(httpClient *http.Client, signer Signer, baseURL string, validateUploads bool) *Client {
	return &Client{
		HTTP:            httpClient,
		Signer:          signer,
		BaseURL:         baseURL,
		ValidateUploads: validateUploads,
		RetryPolicy:     mantatransport.DefaultRetryPolicy,
	}
}

// Response is the raw outcome of a verb call: status, headers, and a
// fully-read body (MPU/object responses are small JSON documents or empty;
// large object bodies are streamed separately via pkg/ranger, not through
// this helper).
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// do issues method/path with body (nil for no entity), retrying an
// idempotent method (anything but POST) a bounded number of times on a
// retriable transport failure per §4.2 — each retry
// rebuilds the request from scratch so the Date header (and therefore the
// signature) is fresh, matching "retries re-sign the request". Status-code
// failures are not retried here: they are surfaced to the caller on the
// first attempt, since a non-success response isn't a transport failure.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, expected []int) (*Response, error) {
	policy := c.RetryPolicy
	if policy.MaxAttempts() <= 0 {
		policy = mantatransport.DefaultRetryPolicy
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts(); attempt++ {
		resp, err := c.doOnce(ctx, method, path, body, contentType, expected)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if method == http.MethodPost || !isRetriableTransportError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, contentType string, expected []int) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, mantaerrs.IO.Wrap(err)
	}
	req.Header.Set("Date", httpDate())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if err := c.Signer.Sign(req); err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, mantaerrs.IO.Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mantaerrs.IO.Wrap(err)
	}

	if !statusExpected(resp.StatusCode, expected) {
		return nil, mantaerrs.NewHTTPError(
			method, c.BaseURL+path, resp.StatusCode, resp.Status,
			resp.Header.Get("X-Request-Id"), mantaerrs.Truncate(data, 2048),
			resp.Header.Get("Content-Type"),
		)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// isRetriableTransportError reports whether err is a network-level failure
// mantatransport.ShouldRetry classifies as retriable. HTTP-level failures
// (*mantaerrs.HTTPError) are never retried here.
func isRetriableTransportError(err error) bool {
	if _, ok := mantaerrs.AsHTTPError(err); ok {
		return false
	}
	return mantatransport.ShouldRetry(err)
}

// statusExpected implements §4.4's status-code policy: if the caller
// supplies an expected-code list, a mismatch fails; an empty list means
// "any code < 400 is fine".
func statusExpected(got int, expected []int) bool {
	if len(expected) == 0 {
		return got < 400
	}
	for _, e := range expected {
		if got == e {
			return true
		}
	}
	return false
}

// Head issues a HEAD request to path.
func (c *Client) Head(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodHead, path, nil, "", nil)
}

// Get issues a GET request to path.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, "", nil)
}

// GetRange issues a signed ranged GET for [offset, offset+length), for
// pkg/ranger's random-access reader, accepting either a 206 (server
// honored the range) or 200 (server ignored it and returned the whole
// object, e.g. for an empty file).
func (c *Client) GetRange(ctx context.Context, path string, offset, length int64) (*Response, error) {
	policy := c.RetryPolicy
	if policy.MaxAttempts() <= 0 {
		policy = mantatransport.DefaultRetryPolicy
	}

	expected := []int{http.StatusPartialContent, http.StatusOK}
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts(); attempt++ {
		resp, err := c.getRangeOnce(ctx, path, offset, length, expected)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetriableTransportError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) getRangeOnce(ctx context.Context, path string, offset, length int64, expected []int) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, mantaerrs.IO.Wrap(err)
	}
	req.Header.Set("Date", httpDate())
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	if err := c.Signer.Sign(req); err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, mantaerrs.IO.Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mantaerrs.IO.Wrap(err)
	}

	if !statusExpected(resp.StatusCode, expected) {
		return nil, mantaerrs.NewHTTPError(
			http.MethodGet, c.BaseURL+path, resp.StatusCode, resp.Status,
			resp.Header.Get("X-Request-Id"), mantaerrs.Truncate(data, 2048),
			resp.Header.Get("Content-Type"),
		)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Delete issues a DELETE request to path, expecting 204 unless expected is
// supplied.
func (c *Client) Delete(ctx context.Context, path string, expected ...int) (*Response, error) {
	if len(expected) == 0 {
		expected = []int{http.StatusNoContent}
	}
	return c.do(ctx, http.MethodDelete, path, nil, "", expected)
}

// Post issues a POST request with body, expecting the status codes in
// expected (empty means "< 400").
func (c *Client) Post(ctx context.Context, path string, body []byte, contentType string, expected ...int) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, contentType, expected)
}

// PutResult is the rich return value of Put, carrying the entity tag and
// client digest used for validation.
type PutResult struct {
	Response    *Response
	ETag        string
	ClientMD5   string // hex, empty if no digest was computed
	ServerMD5   string // from the response header, empty if server omitted it
}

// Put uploads body to path. If c.ValidateUploads is set and body is
// non-nil, the request entity is wrapped in a digest.Entity; on success the
// server-reported MD5 (if any) is compared against the client digest and a
// mismatch fails with a Checksum-classified error. A missing server MD5
// skips verification (§4.4: "a null client digest ... skips verification
// with a warning" — here, logged via the caller-supplied onWarn hook).
func (c *Client) Put(ctx context.Context, path string, body io.Reader, contentType string, onWarn func(string)) (*PutResult, error) {
	return c.PutHeaders(ctx, path, body, contentType, nil, onWarn)
}

// PutHeaders is Put plus an arbitrary set of additional request headers
// (e.g. Object Model metadata headers or CSE m-encrypt-* headers), applied
// after Content-Type so a caller-supplied "Content-Type" entry can override
// contentType. Like do/getRangeOnce, PUT is idempotent here (§4.2) and is
// retried on a retriable transport failure; body is read into memory once
// up front so each retry attempt re-sends the identical entity from a fresh
// reader rather than resuming a partially-consumed stream.
func (c *Client) PutHeaders(ctx context.Context, path string, body io.Reader, contentType string, headers map[string]string, onWarn func(string)) (*PutResult, error) {
	var bodyBytes []byte
	if body != nil {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, mantaerrs.IO.Wrap(err)
		}
		bodyBytes = data
	}

	policy := c.RetryPolicy
	if policy.MaxAttempts() <= 0 {
		policy = mantatransport.DefaultRetryPolicy
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts(); attempt++ {
		result, err := c.putOnce(ctx, path, bodyBytes, body != nil, contentType, headers, onWarn)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetriableTransportError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) putOnce(ctx context.Context, path string, bodyBytes []byte, hasBody bool, contentType string, headers map[string]string, onWarn func(string)) (*PutResult, error) {
	var (
		entity    *digest.Entity
		putSource io.Reader
	)
	if hasBody {
		putSource = bytes.NewReader(bodyBytes)
		if c.ValidateUploads {
			entity = digest.New(putSource)
			putSource = entity
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+path, putSource)
	if err != nil {
		return nil, mantaerrs.IO.Wrap(err)
	}
	req.Header.Set("Date", httpDate())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if err := c.Signer.Sign(req); err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, mantaerrs.IO.Wrap(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mantaerrs.IO.Wrap(err)
	}

	if resp.StatusCode >= 400 {
		return nil, mantaerrs.NewHTTPError(
			http.MethodPut, c.BaseURL+path, resp.StatusCode, resp.Status,
			resp.Header.Get("X-Request-Id"), mantaerrs.Truncate(data, 2048),
			resp.Header.Get("Content-Type"),
		)
	}

	result := &PutResult{
		Response: &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data},
		ETag:     resp.Header.Get("ETag"),
	}

	if entity != nil {
		result.ClientMD5 = entity.Digest()
		result.ServerMD5 = resp.Header.Get("Computed-MD5")
		switch {
		case result.ServerMD5 == "":
			if onWarn != nil {
				onWarn("server did not report a checksum; skipping validation")
			}
		case result.ServerMD5 != result.ClientMD5:
			return nil, mantaerrs.NewChecksumError(path, result.ClientMD5, result.ServerMD5)
		}
	}

	return result, nil
}

func httpDate() string {
	return nowFunc().UTC().Format(http.TimeFormat)
}
