// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package ranger

import (
	"context"
	"io"
	"sync"
)

// SeekableReader is a read-only seekable byte channel over a Ranger. It
// lazily opens its underlying range on the first Read call; calling
// Position to move to a new offset returns a *new* SeekableReader starting
// there, leaving the old one (and its already-open response) untouched.
//
// Per §9 DESIGN NOTES, the lazy-open state is a sync.Once-guarded one-shot
// initializer — a single writer with clear visibility guarantees — instead
// of the source's compare-and-set on a shared atomic reference.
type SeekableReader struct {
	ranger Ranger
	pos    int64

	openOnce sync.Once
	openErr  error
	body     io.ReadCloser
}

// NewSeekableReader builds a SeekableReader over ranger starting at
// position 0.
func NewSeekableReader(ranger Ranger) *SeekableReader {
	return &SeekableReader{ranger: ranger}
}

// Size returns the total size of the underlying object. It does not
// require opening a range.
func (r *SeekableReader) Size() int64 {
	return r.ranger.Size()
}

// Position returns a new SeekableReader over the same ranger starting at
// newPos. The receiver is left exactly as it was; its open response (if
// any) remains valid until the caller Closes it explicitly.
func (r *SeekableReader) Position(newPos int64) *SeekableReader {
	return &SeekableReader{ranger: r.ranger, pos: newPos}
}

// open lazily issues the ranged GET from the current position to the end
// of the object. Only the first caller's ctx is used for the underlying
// request; subsequent Read calls reuse the already-open body.
func (r *SeekableReader) open(ctx context.Context) error {
	r.openOnce.Do(func() {
		length := r.ranger.Size() - r.pos
		if length < 0 {
			length = 0
		}
		body, err := r.ranger.Range(ctx, r.pos, length)
		if err != nil {
			r.openErr = err
			return
		}
		r.body = body
	})
	return r.openErr
}

// Read implements io.Reader, opening the underlying range on first call.
// It returns (0, io.EOF) once the object's end is reached, tracking the
// absolute position as bytes are consumed.
func (r *SeekableReader) Read(p []byte) (int, error) {
	if err := r.open(context.Background()); err != nil {
		return 0, err
	}
	n, err := r.body.Read(p)
	r.pos += int64(n)
	return n, err
}

// ReadContext is like Read but threads ctx through to the lazy open, for
// callers that want the first request's context honored (e.g. for
// cancellation of a read that hasn't started yet).
func (r *SeekableReader) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := r.open(ctx); err != nil {
		return 0, err
	}
	n, err := r.body.Read(p)
	r.pos += int64(n)
	return n, err
}

// Close releases the underlying open response, if any was established.
func (r *SeekableReader) Close() error {
	if r.body != nil {
		return r.body.Close()
	}
	return nil
}

// Write always fails: the channel is read-only, mirroring §4.5's
// NonWritableChannel behavior for Write/Truncate.
func (r *SeekableReader) Write([]byte) (int, error) {
	return 0, Error.New("non-writable channel")
}

// Truncate always fails, mirroring §4.5.
func (r *SeekableReader) Truncate(int64) error {
	return Error.New("non-writable channel")
}
