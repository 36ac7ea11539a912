// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package eestream

import (
	"io"
	"sync"
)

// MultipartOutputStream buffers trailing bytes so that every block written
// to a sink except the last is a whole multiple of blockSize. Nothing
// about this catalog's ciphers requires alignment at a part boundary — a
// stream cipher's keystream and an AEAD's sealed buffer both continue
// correctly from any byte offset — the buffering exists so FlushBuffer has
// something to flush and Write doesn't dribble single-byte sink calls.
//
// Grounded on storj-storj/pkg/eestream/pad.go's calculatePaddingSize/
// makePadding/countingReader — the same "track bytes produced, round to a
// block multiple" arithmetic, generalized here from one-shot end-of-stream
// padding into a stateful buffer that survives multiple SetNext calls.
type MultipartOutputStream struct {
	mu        sync.Mutex
	blockSize int
	buf       []byte
	sink      io.Writer
}

// NewMultipartOutputStream builds a stream enforcing blockSize alignment.
// The first sink must be set with SetNext before any Write.
func NewMultipartOutputStream(blockSize int) *MultipartOutputStream {
	return &MultipartOutputStream{blockSize: blockSize}
}

// SetNext switches the current downstream sink without emitting the
// buffered tail — the tail carries over and will be prefixed to whatever
// is written to the new sink.
func (m *MultipartOutputStream) SetNext(sink io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// Write appends p to the internal buffer, immediately emitting every whole
// block to the current sink and retaining the remainder (< blockSize) for
// the next Write or sink switch. Bytes appear on the concatenation of
// sinks in the order they were written, per §4.8's invariant.
func (m *MultipartOutputStream) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf = append(m.buf, p...)
	whole := (len(m.buf) / m.blockSize) * m.blockSize
	if whole > 0 {
		if m.sink == nil {
			return 0, Error.New("no sink set for multipart output stream")
		}
		if _, err := m.sink.Write(m.buf[:whole]); err != nil {
			return 0, Error.Wrap(err)
		}
		m.buf = append([]byte(nil), m.buf[whole:]...)
	}
	return len(p), nil
}

// FlushBuffer emits whatever remains in the buffer to the current sink,
// regardless of block alignment — a part boundary is not an alignment
// boundary, since each of this catalog's ciphers is a stream cipher
// (byte-for-byte CTR keystream, or an AEAD buffered whole and unpacked at
// Finalize) with no block-alignment requirement of its own. Safe to call
// after every part.
func (m *MultipartOutputStream) FlushBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.buf) == 0 {
		return nil
	}
	if m.sink == nil {
		return Error.New("no sink set for multipart output stream")
	}
	if _, err := m.sink.Write(m.buf); err != nil {
		return Error.Wrap(err)
	}
	m.buf = nil
	return nil
}

// ForceFlush is FlushBuffer under the name callers use at true end-of-object
// (after which no more parts will be encrypted), kept distinct from
// FlushBuffer's per-part call sites for readability at the call site.
func (m *MultipartOutputStream) ForceFlush() error {
	return m.FlushBuffer()
}

// Buffered returns the number of bytes currently held back pending
// alignment, for tests and diagnostics.
func (m *MultipartOutputStream) Buffered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buf)
}
