// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package eestream

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"hash"

	"github.com/joyent/go-manta/internal/mantaerrs"
)

// CipherState is the encryption context shared across the parts of one
// object, per §3's "Encryption context" and §9's re-architecture of the
// source's mutable shared cipher object into an explicit session value.
// It is not itself safe for concurrent use — callers (pkg/multipart's
// EncryptedManager) serialize access with their own mutex,
// since §5 forbids concurrent part encryption for a single object anyway.
type CipherState struct {
	spec CipherSpec
	iv   []byte
	key  []byte

	stream cipher_stream // set for CTR ciphers
	mac    hash.Hash     // set for CTR ciphers (encrypt-then-MAC trailer)

	sealer          aeadSealer   // set for AEAD ciphers (GCM, SECRETBOX)
	plaintextBuffer *bytes.Buffer // AEAD ciphers buffer until Finalize; see note below

	bytesEncrypted int64
	finalized      bool
}

// cipher_stream is a local alias kept narrow (XORKeyStream only) so this
// file doesn't need to import crypto/cipher just to name the type again.
type cipher_stream interface {
	XORKeyStream(dst, src []byte)
}

// NewCipherState builds a fresh CipherState for spec, generating a new IV.
// Exactly one IV is generated per object, per §3's invariant.
func NewCipherState(spec CipherSpec, key []byte) (*CipherState, error) {
	if len(key) != spec.KeySize {
		return nil, mantaerrs.Crypto.New("cipher %s requires a %d-byte key, got %d", spec.ID, spec.KeySize, len(key))
	}

	cs := &CipherState{spec: spec, key: append([]byte(nil), key...)}

	switch {
	case spec.AEAD:
		sealer, iv, err := spec.newAEAD(key)
		if err != nil {
			return nil, err
		}
		cs.sealer = sealer
		cs.iv = iv
		cs.plaintextBuffer = new(bytes.Buffer)
	default:
		stream, iv, err := spec.newStream(key)
		if err != nil {
			return nil, err
		}
		cs.stream = stream
		cs.iv = iv
		cs.mac = hmac.New(sha256.New, key)
		cs.mac.Write(iv) //nolint:errcheck // hash.Hash.Write never fails.
	}

	return cs, nil
}

// IV returns the object's single IV, for embedding in the ciphertext
// stream of the first part and for the m-encrypt-iv metadata header.
func (cs *CipherState) IV() []byte {
	return append([]byte(nil), cs.iv...)
}

// EncryptChunk consumes one chunk of plaintext. CTR ciphers emit the
// corresponding ciphertext immediately (true streaming); AEAD ciphers
// return nil and buffer the plaintext, since neither Go's crypto/cipher.AEAD
// nor nacl/secretbox exposes an incremental tag computation — the tag can
// only be produced over the whole message in Finalize. This is a deliberate
// simplification, not an oversight: it trades
// AEAD-mode memory for the ability to reuse stdlib/nacl sealing verbatim
// instead of reimplementing GHASH or Poly1305 incrementally.
func (cs *CipherState) EncryptChunk(plaintext []byte) ([]byte, error) {
	if cs.finalized {
		return nil, Error.New("cipher state already finalized")
	}
	cs.bytesEncrypted += int64(len(plaintext))

	if cs.spec.AEAD {
		cs.plaintextBuffer.Write(plaintext)
		return nil, nil
	}

	out := make([]byte, len(plaintext))
	cs.stream.XORKeyStream(out, plaintext)
	cs.mac.Write(out) //nolint:errcheck
	return out, nil
}

// Finalize seals the remaining output: for AEAD ciphers, the accumulated
// ciphertext+tag over the whole buffered plaintext; for CTR ciphers, the
// HMAC-SHA256 trailer over IV‖ciphertext (encrypt-then-MAC). This is
// emitted once, after the plaintext's last byte, per §3 and §4.10 — as a
// synthetic final MPU part.
func (cs *CipherState) Finalize() ([]byte, error) {
	if cs.finalized {
		return nil, Error.New("cipher state already finalized")
	}
	cs.finalized = true

	if cs.spec.AEAD {
		return cs.sealer.Seal(cs.iv, cs.plaintextBuffer.Bytes()), nil
	}
	return cs.mac.Sum(nil), nil
}

// BytesEncrypted returns the number of plaintext bytes consumed so far,
// used for the m-encrypt-plaintext-content-length metadata header.
func (cs *CipherState) BytesEncrypted() int64 {
	return cs.bytesEncrypted
}

// CipherStateSnapshot is a pure value copy of a CipherState's IV and
// position, per §9's "explicit freeze()/thaw() on the cipher abstraction
// implemented on top of a pure-software cipher the library controls"
// re-architecture of the source's reflection-based snapshot. It carries no
// key material and no live cipher/hash objects, so it is safe to hold or
// log; it deliberately cannot be used to resume encryption in a different
// process, since cross-process resume is out of scope per §1.
type CipherStateSnapshot struct {
	CipherID       CipherID
	IV             []byte
	BytesEncrypted int64
}

// Freeze captures a pure value snapshot of cs's position. It does not
// pause or otherwise affect cs, which remains usable afterward.
func (cs *CipherState) Freeze() CipherStateSnapshot {
	return CipherStateSnapshot{
		CipherID:       cs.spec.ID,
		IV:             cs.IV(),
		BytesEncrypted: cs.bytesEncrypted,
	}
}

// ThawCipherState rebuilds a resumable CipherState from a snapshot and the
// original key, fast-forwarding a CTR keystream by re-deriving it from the
// IV (AEAD ciphers cannot resume mid-object this way, since their
// underlying libraries expose no incremental tag state; resuming an AEAD
// upload therefore requires the caller to have kept the plaintext, which
// EncryptedManager does by holding the live CipherState, whose plaintext
// buffer lasts for the life of the upload, rather than through Thaw).
func ThawCipherState(snap CipherStateSnapshot, key []byte) (*CipherState, error) {
	spec, err := Lookup(snap.CipherID)
	if err != nil {
		return nil, err
	}
	if spec.AEAD {
		return nil, Error.New("cannot thaw an AEAD cipher state mid-object; caller must retain plaintext")
	}
	if len(key) != spec.KeySize {
		return nil, mantaerrs.Crypto.New("cipher %s requires a %d-byte key, got %d", spec.ID, spec.KeySize, len(key))
	}

	stream, iv, err := recreateStreamWithIV(spec, key, snap.IV)
	if err != nil {
		return nil, err
	}

	cs := &CipherState{
		spec:           spec,
		iv:             iv,
		key:            append([]byte(nil), key...),
		stream:         stream,
		mac:            hmac.New(sha256.New, key),
		bytesEncrypted: snap.BytesEncrypted,
	}
	cs.mac.Write(iv) //nolint:errcheck

	// Fast-forward the keystream past the bytes already encrypted, so the
	// next EncryptChunk call continues exactly where the frozen state left
	// off.
	discard := make([]byte, snap.BytesEncrypted)
	cs.stream.XORKeyStream(discard, discard)

	return cs, nil
}
