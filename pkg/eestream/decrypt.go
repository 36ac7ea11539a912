// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package eestream

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"github.com/joyent/go-manta/internal/mantaerrs"
)

// DecryptingReader streams plaintext from a ciphertext source for a
// random-access (CTR) cipher, the download-side counterpart to
// EncryptingEntity. It does not verify the object's HMAC trailer — that
// requires reading the whole object — so random-range reads trade
// authentication for seekability, same as the source material this is
// grounded on never claims range reads are authenticated either.
type DecryptingReader struct {
	spec   CipherSpec
	stream cipher.Stream
	source io.Reader
}

// NewDecryptingReader builds a DecryptingReader for spec (must be a
// non-AEAD, CounterAt-capable cipher) starting at plaintextOffset. source
// must already be positioned at the ciphertext byte offset
// spec.CounterAt(plaintextOffset) returns — callers typically get that
// range from a Ranger.
func NewDecryptingReader(spec CipherSpec, key, iv []byte, source io.Reader, plaintextOffset int64) (*DecryptingReader, error) {
	if spec.AEAD {
		return nil, mantaerrs.Crypto.New("cipher %s is AEAD and has no random-access decrypt story", spec.ID)
	}
	if spec.CounterAt == nil {
		return nil, mantaerrs.Crypto.New("cipher %s does not support random access", spec.ID)
	}

	stream, err := spec.streamAt(key, iv)
	if err != nil {
		return nil, err
	}

	_, blockAdjust := spec.CounterAt(plaintextOffset)
	if blockAdjust > 0 {
		discard := make([]byte, blockAdjust*uint64(spec.BlockSize))
		stream.XORKeyStream(discard, discard)
	}

	// plaintextOffset may fall mid-block; skip the leading partial-block
	// keystream bytes too so the next XORKeyStream call lines up exactly
	// with the ciphertext byte at plaintextOffset.
	if rem := plaintextOffset % int64(spec.BlockSize); rem > 0 {
		discard := make([]byte, rem)
		stream.XORKeyStream(discard, discard)
	}

	return &DecryptingReader{spec: spec, stream: stream, source: source}, nil
}

// Read decrypts the next chunk of ciphertext from the underlying source in
// place.
func (d *DecryptingReader) Read(p []byte) (int, error) {
	n, err := d.source.Read(p)
	if n > 0 {
		d.stream.XORKeyStream(p[:n], p[:n])
	}
	return n, err
}

// OpenWholeObject decrypts and authenticates an entire object's ciphertext
// in one call, for either AEAD ciphers (tag verification) or CTR ciphers
// (HMAC trailer verification) — the full-object download path where
// authentication is always possible, unlike a partial range read.
func OpenWholeObject(spec CipherSpec, key, iv, ciphertext []byte) ([]byte, error) {
	if spec.AEAD {
		sealer, err := newSealerForOpen(spec, key)
		if err != nil {
			return nil, err
		}
		plaintext, err := sealer.Open(iv, ciphertext)
		if err != nil {
			return nil, mantaerrs.Crypto.Wrap(err)
		}
		return plaintext, nil
	}

	if len(ciphertext) < spec.TagSize {
		return nil, mantaerrs.Crypto.New("ciphertext shorter than its HMAC trailer: %d < %d", len(ciphertext), spec.TagSize)
	}
	body := ciphertext[:len(ciphertext)-spec.TagSize]
	trailer := ciphertext[len(ciphertext)-spec.TagSize:]

	mac := hmac.New(sha256.New, key)
	mac.Write(iv)          //nolint:errcheck
	mac.Write(body)        //nolint:errcheck
	if !hmac.Equal(mac.Sum(nil), trailer) {
		return nil, mantaerrs.Crypto.New("HMAC trailer mismatch: object ciphertext has been tampered with or corrupted")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, mantaerrs.Crypto.Wrap(err)
	}
	stream := cipher.NewCTR(block, iv)
	plaintext := make([]byte, len(body))
	stream.XORKeyStream(plaintext, body)
	return plaintext, nil
}

// newSealerForOpen rebuilds an aeadSealer for key without generating a new
// IV, for OpenWholeObject's decrypt-only path.
func newSealerForOpen(spec CipherSpec, key []byte) (aeadSealer, error) {
	switch spec.ID {
	case AES128GCMNoPadding, AES256GCMNoPadding:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, mantaerrs.Crypto.Wrap(err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, mantaerrs.Crypto.Wrap(err)
		}
		return gcmAdapter{aead}, nil
	case SecretBox:
		if len(key) != 32 {
			return nil, mantaerrs.Crypto.New("secretbox requires a 32-byte key, got %d", len(key))
		}
		var k [32]byte
		copy(k[:], key)
		return secretboxAdapter{key: k}, nil
	default:
		return nil, mantaerrs.Crypto.New("cipher %s is not a recognized AEAD entry", spec.ID)
	}
}
