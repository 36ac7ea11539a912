// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

// Package digest implements the MD5-digesting upload entity: a thin wrapper
// around an io.Reader that computes a running digest and byte count as the
// wrapped stream is consumed. Grounded on storj-storj/pkg/eestream/pad.go's
// countingReader, generalized from counting to counting-and-hashing.
package digest

import (
	"crypto/md5" //nolint:gosec // MD5 here is a checksum for corruption detection, not a security primitive.
	"encoding/hex"
	"hash"
	"io"

	"github.com/zeebo/errs"
)

// Error is this package's error class.
var Error = errs.Class("digest error")

// Entity wraps a source reader, streaming reads through while updating a
// running digest and byte counter. Digest() is only valid after the wrapped
// reader has been fully consumed (io.EOF observed).
type Entity struct {
	source    io.Reader
	hash      hash.Hash
	byteCount int64
	done      bool
}

// New wraps source in a digesting Entity using MD5.
func New(source io.Reader) *Entity {
	return &Entity{source: source, hash: md5.New()} //nolint:gosec
}

// Read implements io.Reader, feeding every byte read from the source into
// the running digest before returning it to the caller.
func (e *Entity) Read(p []byte) (int, error) {
	n, err := e.source.Read(p)
	if n > 0 {
		e.hash.Write(p[:n]) //nolint:errcheck // hash.Hash.Write never fails.
		e.byteCount += int64(n)
	}
	if err == io.EOF {
		e.done = true
	}
	return n, err
}

// WriteTo streams the wrapped source into sink, updating the digest and
// byte counter as it goes, and returns the number of bytes copied.
func (e *Entity) WriteTo(sink io.Writer) (int64, error) {
	// io.Copy special-cases a source that implements io.WriterTo by calling
	// its WriteTo method directly; since Entity implements WriteTo, passing
	// e itself would recurse into this method forever. Hiding the method
	// behind a plain io.Reader forces io.Copy to drive e.Read instead.
	n, err := io.Copy(sink, struct{ io.Reader }{e})
	if err != nil {
		return n, Error.Wrap(err)
	}
	return n, nil
}

// Digest returns the hex-encoded MD5 digest of everything read so far. It is
// only meaningful once WriteTo/Read have fully consumed the source; callers
// that need to assert completion should check ByteCount against an expected
// length first.
func (e *Entity) Digest() string {
	return hex.EncodeToString(e.hash.Sum(nil))
}

// ByteCount returns the number of bytes streamed through the entity so far.
func (e *Entity) ByteCount() int64 {
	return e.byteCount
}

// Done reports whether the wrapped source has been fully consumed (an EOF
// was observed by Read). Digest() is only trustworthy once Done is true.
func (e *Entity) Done() bool {
	return e.done
}
