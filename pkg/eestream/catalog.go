// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package eestream

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/joyent/go-manta/internal/mantaerrs"
)

// CipherID is a canonical cipher identifier, as used in the
// m-encrypt-cipher metadata header.
type CipherID string

// The cipher catalog entries named by §4.6. CTR entries are random-access
// (encrypt-then-MAC, CounterAt is non-nil); GCM and SECRETBOX are AEAD
// (whole-object tag, not random-access).
const (
	AES128CTRNoPadding CipherID = "AES128/CTR/NoPadding"
	AES192CTRNoPadding CipherID = "AES192/CTR/NoPadding"
	AES256CTRNoPadding CipherID = "AES256/CTR/NoPadding"
	AES128GCMNoPadding CipherID = "AES128/GCM/NoPadding"
	AES256GCMNoPadding CipherID = "AES256/GCM/NoPadding"
	SecretBox          CipherID = "SECRETBOX"
)

const (
	aesBlockSize    = aes.BlockSize // 16
	gcmNonceSize    = 12
	secretboxNonceSize = 24
	hmacTagSize     = 32 // sha256.Size, used for the encrypt-then-MAC trailer
)

// CipherSpec describes one catalog entry's layout parameters and factories,
// per §4.6.
type CipherSpec struct {
	ID        CipherID
	KeySize   int
	IVSize    int
	BlockSize int
	AEAD      bool
	// TagSize is the AEAD tag length (AEAD ciphers) or the HMAC trailer
	// length (encrypt-then-MAC ciphers).
	TagSize int
	// CounterAt computes, for random-access (CTR) ciphers, the ciphertext
	// byte offset and keystream-block adjustment needed to resume
	// decryption at a given plaintext offset. nil for AEAD ciphers, which
	// have no random-access story (§4.6).
	CounterAt func(plaintextOffset int64) (ciphertextOffset int64, blockAdjust uint64)

	newStream   func(key []byte) (cipher.Stream, []byte, error) // returns stream + generated IV
	newAEAD     func(key []byte) (aeadSealer, []byte, error)    // returns sealer + generated IV
	streamAt    func(key, iv []byte) (cipher.Stream, error)     // rebuilds a stream from a known IV (Thaw)
}

// recreateStreamWithIV rebuilds a CTR cipher.Stream from a previously
// generated IV, for ThawCipherState.
func recreateStreamWithIV(spec CipherSpec, key, iv []byte) (cipher.Stream, []byte, error) {
	if spec.streamAt == nil {
		return nil, nil, mantaerrs.Crypto.New("cipher %s does not support resuming from a known IV", spec.ID)
	}
	stream, err := spec.streamAt(key, iv)
	if err != nil {
		return nil, nil, err
	}
	return stream, iv, nil
}

// aeadSealer is the minimal surface this package needs from an AEAD-style
// cipher: seal the whole plaintext against one IV, in one call. Both
// crypto/cipher.AEAD (GCM) and nacl/secretbox are adapted to this shape so
// CipherState doesn't need to special-case either.
type aeadSealer interface {
	Seal(iv, plaintext []byte) (ciphertext []byte)
	Open(iv, ciphertext []byte) (plaintext []byte, err error)
	Overhead() int
}

// Catalog is the registry of supported ciphers, keyed by canonical id.
var Catalog = map[CipherID]CipherSpec{
	AES128CTRNoPadding: ctrSpec(AES128CTRNoPadding, 16),
	AES192CTRNoPadding: ctrSpec(AES192CTRNoPadding, 24),
	AES256CTRNoPadding: ctrSpec(AES256CTRNoPadding, 32),
	AES128GCMNoPadding: gcmSpec(AES128GCMNoPadding, 16),
	AES256GCMNoPadding: gcmSpec(AES256GCMNoPadding, 32),
	SecretBox:          secretboxSpec(),
}

// Lookup resolves a canonical cipher id to its CipherSpec, failing with a
// Crypto-classified error (construction-time failure per §7) if unknown.
func Lookup(id CipherID) (CipherSpec, error) {
	spec, ok := Catalog[id]
	if !ok {
		return CipherSpec{}, mantaerrs.Crypto.New("unsupported cipher %q", id)
	}
	return spec, nil
}

func ctrSpec(id CipherID, keySize int) CipherSpec {
	return CipherSpec{
		ID:        id,
		KeySize:   keySize,
		IVSize:    aesBlockSize,
		BlockSize: aesBlockSize,
		AEAD:      false,
		TagSize:   hmacTagSize,
		CounterAt: func(plaintextOffset int64) (int64, uint64) {
			// CTR mode: ciphertext offset equals plaintext offset exactly
			// (no expansion); the block adjustment is how many whole
			// blocks of keystream to skip before XOR-ing the partial
			// block at the start of the requested range.
			blockAdjust := uint64(plaintextOffset / aesBlockSize)
			return plaintextOffset, blockAdjust
		},
		newStream: func(key []byte) (cipher.Stream, []byte, error) {
			block, err := aes.NewCipher(key)
			if err != nil {
				return nil, nil, mantaerrs.Crypto.Wrap(err)
			}
			iv := make([]byte, aesBlockSize)
			if _, err := rand.Read(iv); err != nil {
				return nil, nil, mantaerrs.Crypto.Wrap(err)
			}
			return cipher.NewCTR(block, iv), iv, nil
		},
		streamAt: func(key, iv []byte) (cipher.Stream, error) {
			block, err := aes.NewCipher(key)
			if err != nil {
				return nil, mantaerrs.Crypto.Wrap(err)
			}
			return cipher.NewCTR(block, iv), nil
		},
	}
}

func gcmSpec(id CipherID, keySize int) CipherSpec {
	return CipherSpec{
		ID:        id,
		KeySize:   keySize,
		IVSize:    gcmNonceSize,
		BlockSize: aesBlockSize,
		AEAD:      true,
		TagSize:   16, // GCM tag size
		newAEAD: func(key []byte) (aeadSealer, []byte, error) {
			block, err := aes.NewCipher(key)
			if err != nil {
				return nil, nil, mantaerrs.Crypto.Wrap(err)
			}
			aead, err := cipher.NewGCM(block)
			if err != nil {
				return nil, nil, mantaerrs.Crypto.Wrap(err)
			}
			iv := make([]byte, gcmNonceSize)
			if _, err := rand.Read(iv); err != nil {
				return nil, nil, mantaerrs.Crypto.Wrap(err)
			}
			return gcmAdapter{aead}, iv, nil
		},
	}
}

type gcmAdapter struct{ aead cipher.AEAD }

func (g gcmAdapter) Seal(iv, plaintext []byte) []byte { return g.aead.Seal(nil, iv, plaintext, nil) }
func (g gcmAdapter) Open(iv, ciphertext []byte) ([]byte, error) {
	return g.aead.Open(nil, iv, ciphertext, nil)
}
func (g gcmAdapter) Overhead() int { return g.aead.Overhead() }

func secretboxSpec() CipherSpec {
	return CipherSpec{
		ID:        SecretBox,
		KeySize:   32,
		IVSize:    secretboxNonceSize,
		BlockSize: 1,
		AEAD:      true,
		TagSize:   secretbox.Overhead,
		newAEAD: func(key []byte) (aeadSealer, []byte, error) {
			if len(key) != 32 {
				return nil, nil, mantaerrs.Crypto.New("secretbox requires a 32-byte key, got %d", len(key))
			}
			var k [32]byte
			copy(k[:], key)
			iv := make([]byte, secretboxNonceSize)
			if _, err := rand.Read(iv); err != nil {
				return nil, nil, mantaerrs.Crypto.Wrap(err)
			}
			return secretboxAdapter{key: k}, iv, nil
		},
	}
}

type secretboxAdapter struct{ key [32]byte }

func (s secretboxAdapter) Seal(iv, plaintext []byte) []byte {
	var nonce [secretboxNonceSize]byte
	copy(nonce[:], iv)
	return secretbox.Seal(nil, plaintext, &nonce, &s.key)
}

func (s secretboxAdapter) Open(iv, ciphertext []byte) ([]byte, error) {
	var nonce [secretboxNonceSize]byte
	copy(nonce[:], iv)
	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &s.key)
	if !ok {
		return nil, mantaerrs.Crypto.New("secretbox: message authentication failed")
	}
	return plaintext, nil
}

func (s secretboxAdapter) Overhead() int { return secretbox.Overhead }
