// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package manta

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/joyent/go-manta/internal/mantaerrs"
	"github.com/joyent/go-manta/pkg/httpclient"
	"github.com/joyent/go-manta/pkg/ranger"
)

// signedRanger implements ranger.Ranger over a signed httpclient.Client
// instead of pkg/ranger's plain http.DefaultClient — every ranged GET must
// carry this account's HTTP Signatures Authorization header, which
// pkg/ranger's HTTPRanger has no hook for.
type signedRanger struct {
	http *httpclient.Client
	path string
	size int64
}

// newSignedRanger issues a HEAD to discover path's size, then builds a
// Ranger over signed ranged GETs.
func newSignedRanger(ctx context.Context, hc *httpclient.Client, path string) (*signedRanger, error) {
	resp, err := hc.Head(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.Header.Get("Content-Type") == DirectoryContentType {
		return nil, mantaerrs.IO.New("cannot range over a directory: %s", path)
	}

	size, err := contentLength(resp)
	if err != nil {
		return nil, err
	}
	return &signedRanger{http: hc, path: path, size: size}, nil
}

func contentLength(resp *httpclient.Response) (int64, error) {
	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return 0, mantaerrs.IO.New("object response carries no Content-Length")
	}
	size, err := strconv.ParseInt(cl, 10, 64)
	if err != nil {
		return 0, mantaerrs.IO.New("malformed Content-Length %q: %v", cl, err)
	}
	return size, nil
}

func (r *signedRanger) Size() int64 {
	return r.size
}

func (r *signedRanger) Range(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 || length < 0 || offset+length > r.size {
		return nil, ranger.Error.New("range beyond end")
	}
	if length == 0 {
		return io.NopCloser(nopReader{}), nil
	}
	resp, err := r.http.GetRange(ctx, r.path, offset, length)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(resp.Body)), nil
}

type nopReader struct{}

func (nopReader) Read([]byte) (int, error) { return 0, io.EOF }
