// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

// Package ranger implements the range-seekable reader (C5): a read-only
// seekable byte channel backed by ranged HTTP GETs.
//
// The Ranger/RangerCloser interface shape below is reconstructed from
// storj-storj/pkg/ranger/http_test.go, which is the only surviving artifact
// of the teacher's own http.go in the retrieval pack — the test's table
// cases and exact error strings ("ranger error: range beyond end",
// "ranger error: negative offset", "ranger error: negative length") pin the
// contract this file reimplements.
package ranger

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/zeebo/errs"
)

// Error is this package's error class.
var Error = errs.Class("ranger error")

// Ranger is a source of bytes of a known total size, able to produce a
// ReadCloser for an arbitrary (offset, length) sub-range.
type Ranger interface {
	Size() int64
	Range(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// HTTPRanger builds a Ranger over a plain GET request to url, determining
// its size from a one-byte ranged GET (bytes=0-0): the total in its
// Content-Range, or else its Content-Length. It does not check whether url
// names a directory.
func HTTPRanger(ctx context.Context, url string) (Ranger, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return nil, Error.New("unexpected status %d ranging %s", resp.StatusCode, url)
	}

	size, err := contentRangeSize(resp)
	if err != nil {
		return nil, err
	}

	return HTTPRangerSize(url, size), nil
}

// contentRangeSize extracts the full resource size from a 206 response's
// Content-Range header, falling back to Content-Length for a 200 response
// (server ignored the Range request, e.g. for an empty object).
func contentRangeSize(resp *http.Response) (int64, error) {
	if resp.StatusCode == http.StatusPartialContent {
		var size int64
		cr := resp.Header.Get("Content-Range")
		if _, err := fmt.Sscanf(cr, "bytes 0-0/%d", &size); err == nil {
			return size, nil
		}
	}
	if resp.ContentLength >= 0 {
		return resp.ContentLength, nil
	}
	return 0, Error.New("response carries no usable size information")
}

// httpRanger is a Ranger with a known, fixed size.
type httpRanger struct {
	url  string
	size int64
}

// HTTPRangerSize builds an HTTPRanger with a known size, skipping the
// size-discovery request — use this when the caller already knows the
// object's length (e.g. from a prior HEAD).
func HTTPRangerSize(url string, size int64) Ranger {
	return &httpRanger{url: url, size: size}
}

func (r *httpRanger) Size() int64 {
	return r.size
}

func (r *httpRanger) Range(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 {
		return nil, Error.New("negative offset")
	}
	if length < 0 {
		return nil, Error.New("negative length")
	}
	if offset+length > r.size {
		return nil, Error.New("range beyond end")
	}
	if length == 0 {
		return io.NopCloser(noBytesReader{}), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, Error.New("unexpected status %d ranging %s", resp.StatusCode, r.url)
	}
	return resp.Body, nil
}

type noBytesReader struct{}

func (noBytesReader) Read(p []byte) (int, error) { return 0, io.EOF }
