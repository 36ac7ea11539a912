// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package manta

import (
	"context"
	"io"

	"github.com/joyent/go-manta/internal/mantaerrs"
	"github.com/joyent/go-manta/pkg/eestream"
	"github.com/joyent/go-manta/pkg/ranger"
)

// decryptingRanger adapts a ciphertext-object Ranger into a plaintext-sized
// Ranger, per §1's "ciphertext whose layout permits random-access
// decryption on download" — but only for CTR-family ciphers, whose
// CounterAt lets a byte range be decrypted without touching the rest of the
// object. AEAD ciphers have no such story (their tag covers the whole
// message), so Range on an AEAD-encrypted object only supports reading from
// offset 0 through the object's end in one call.
type decryptingRanger struct {
	base ranger.Ranger
	spec eestream.CipherSpec
	key  []byte
	iv   []byte

	plaintextSize int64
}

func (d *decryptingRanger) Size() int64 {
	return d.plaintextSize
}

func (d *decryptingRanger) Range(ctx context.Context, plaintextOffset, plaintextLength int64) (io.ReadCloser, error) {
	if plaintextOffset < 0 || plaintextLength < 0 || plaintextOffset+plaintextLength > d.plaintextSize {
		return nil, mantaerrs.IO.New("range beyond end")
	}

	if d.spec.AEAD {
		if plaintextOffset != 0 {
			return nil, mantaerrs.Crypto.New("cipher %s does not support random-access reads; only offset 0 is allowed", d.spec.ID)
		}
		ciphertext, err := d.readAll(ctx, int64(len(d.iv)), d.base.Size()-int64(len(d.iv)))
		if err != nil {
			return nil, err
		}
		plaintext, err := eestream.OpenWholeObject(d.spec, d.key, d.iv, ciphertext)
		if err != nil {
			return nil, err
		}
		if plaintextLength < int64(len(plaintext)) {
			plaintext = plaintext[:plaintextLength]
		}
		return io.NopCloser(byteReader(plaintext)), nil
	}

	ciphertextOffset, _ := d.spec.CounterAt(plaintextOffset)
	body, err := d.base.Range(ctx, int64(len(d.iv))+ciphertextOffset, plaintextLength)
	if err != nil {
		return nil, err
	}

	dr, err := eestream.NewDecryptingReader(d.spec, d.key, d.iv, body, plaintextOffset)
	if err != nil {
		body.Close()
		return nil, err
	}
	return &decryptingReadCloser{DecryptingReader: dr, underlying: body}, nil
}

func (d *decryptingRanger) readAll(ctx context.Context, offset, length int64) ([]byte, error) {
	body, err := d.base.Range(ctx, offset, length)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

type decryptingReadCloser struct {
	*eestream.DecryptingReader
	underlying io.Closer
}

func (d *decryptingReadCloser) Close() error {
	return d.underlying.Close()
}

func byteReader(b []byte) io.Reader {
	return &staticReader{data: b}
}

type staticReader struct {
	data []byte
	pos  int
}

func (s *staticReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}
