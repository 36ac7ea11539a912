// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package eestream

import (
	"io"
)

// chunkSize is the read buffer size used when streaming plaintext through
// a CipherState; it has no bearing on cipher block alignment, which
// MultipartOutputStream enforces independently.
const chunkSize = 32 * 1024

// EncryptingEntity wraps a plaintext source, streaming it through a shared
// CipherState into an io.Writer (typically a MultipartOutputStream so the
// emitted ciphertext stays block-aligned across MPU part boundaries).
//
// Per §4.7: content length is reported as unknown, since ciphertext length
// depends on whether an AEAD tag or HMAC trailer is appended, which only
// happens once, at object completion — not at the end of this entity's
// single part.
type EncryptingEntity struct {
	plaintext      io.Reader
	cipherState    *CipherState
	out            io.Writer
	expectedLength int64 // -1 if unknown
	consumed       int64
}

// NewEncryptingEntity wraps plaintext, streaming ciphertext produced by
// cs into out. expectedLength is the wrapped entity's declared plaintext
// length if known, or -1; it is validated against actual consumption in
// WriteTo per §4.7's "original-length bookkeeping".
func NewEncryptingEntity(plaintext io.Reader, cs *CipherState, out io.Writer, expectedLength int64) *EncryptingEntity {
	return &EncryptingEntity{
		plaintext:      plaintext,
		cipherState:    cs,
		out:            out,
		expectedLength: expectedLength,
	}
}

// WriteTo streams plaintext through the shared cipher state into the
// configured output, returning the number of plaintext bytes consumed.
// It does not call Finalize on the cipher state — that only happens once,
// at object completion (§4.10), not at the end of each part.
func (e *EncryptingEntity) WriteTo() (int64, error) {
	buf := make([]byte, chunkSize)
	for {
		n, rerr := e.plaintext.Read(buf)
		if n > 0 {
			ciphertext, err := e.cipherState.EncryptChunk(buf[:n])
			if err != nil {
				return e.consumed, err
			}
			e.consumed += int64(n)
			if len(ciphertext) > 0 {
				if _, werr := e.out.Write(ciphertext); werr != nil {
					return e.consumed, Error.Wrap(werr)
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return e.consumed, Error.Wrap(rerr)
		}
	}

	if e.expectedLength >= 0 && e.consumed != e.expectedLength {
		return e.consumed, Error.New(
			"plaintext length mismatch: declared %d bytes but consumed %d", e.expectedLength, e.consumed)
	}
	return e.consumed, nil
}

// GetCipherState exposes the shared cipher state, e.g. for metadata
// extraction (IV) on the first part, per §4.7's getCipher() accessor.
func (e *EncryptingEntity) GetCipherState() *CipherState {
	return e.cipherState
}
