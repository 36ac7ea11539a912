// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package multipart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/joyent/go-manta/internal/mantaerrs"
	"github.com/joyent/go-manta/pkg/eestream"
)

// Metadata header names for the CSE cryptographic context recorded on the
// finished object, per §6's bit-exact wire contract.
const (
	HeaderKeyID                  = "m-encrypt-key-id"
	HeaderCipher                 = "m-encrypt-cipher"
	HeaderIV                     = "m-encrypt-iv"
	HeaderPlaintextContentLength = "m-encrypt-plaintext-content-length"
	HeaderAEADTagLength          = "m-encrypt-aead-tag-length"
	HeaderHMAC                   = "m-encrypt-hmac"
)

// encryptionContext is the per-upload encryption session value, per §4.10:
// an IV and cipher generated once at Initiate, shared by every part's
// EncryptingEntity and serialized across parts by the EncryptedManager's
// single mutex (one for all of its uploads) rather than by any locking
// internal to CipherState itself.
type encryptionContext struct {
	keyID      string
	cipherSpec eestream.CipherSpec
	cipher     *eestream.CipherState
	output     *eestream.MultipartOutputStream

	parts          []PartReference
	nextPartNumber int
	ivEmitted      bool
}

// EncryptedManager overlays a Manager with transparent client-side
// encryption, per §4.10. Exactly one EncryptedManager should be used for a
// given Manager's uploads that require encryption; non-encrypted uploads
// should go directly through Manager.
type EncryptedManager struct {
	*Manager

	mu       sync.Mutex
	contexts map[uuid.UUID]*encryptionContext
}

// NewEncryptedManager wraps manager with a CSE overlay.
func NewEncryptedManager(manager *Manager) *EncryptedManager {
	return &EncryptedManager{Manager: manager, contexts: make(map[uuid.UUID]*encryptionContext)}
}

// Initiate starts a new encrypted MPU: it creates the underlying upload,
// generates the object's single encryption context (IV + cipher), and
// remembers it keyed by the upload's ID for subsequent UploadPart/Complete
// calls.
func (em *EncryptedManager) Initiate(ctx context.Context, path string, cipherID eestream.CipherID, keyID string, key []byte, metadata map[string]string) (*Upload, error) {
	spec, err := eestream.Lookup(cipherID)
	if err != nil {
		return nil, err
	}

	cs, err := eestream.NewCipherState(spec, key)
	if err != nil {
		return nil, err
	}

	upload, err := em.Manager.Initiate(ctx, path, metadata, nil)
	if err != nil {
		return nil, err
	}

	em.mu.Lock()
	em.contexts[upload.ID] = &encryptionContext{
		keyID:          keyID,
		cipherSpec:     spec,
		cipher:         cs,
		output:         eestream.NewMultipartOutputStream(spec.BlockSize),
		nextPartNumber: 1,
	}
	em.mu.Unlock()

	return upload, nil
}

// UploadPart encrypts plaintext through the upload's shared cipher state
// and uploads the resulting ciphertext as partNumber. Parts must be
// submitted in ascending order on a single goroutine — §5's concurrency
// model forbids parallel part encryption of one object, and this method
// enforces it by rejecting an out-of-order partNumber rather than silently
// corrupting the cipher stream.
func (em *EncryptedManager) UploadPart(ctx context.Context, upload *Upload, partNumber int, plaintext io.Reader, plaintextSize int64) (*PartReference, error) {
	em.mu.Lock()
	ectx, ok := em.contexts[upload.ID]
	if !ok {
		em.mu.Unlock()
		return nil, mantaerrs.Multipart.New("no encryption context for upload %s: Initiate was not called through EncryptedManager", upload.ID)
	}
	if partNumber != ectx.nextPartNumber {
		em.mu.Unlock()
		return nil, mantaerrs.Multipart.New("encrypted upload %s requires ascending part numbers: expected %d, got %d",
			upload.ID, ectx.nextPartNumber, partNumber)
	}

	var sink bytes.Buffer
	if !ectx.ivEmitted {
		sink.Write(ectx.cipher.IV())
		ectx.ivEmitted = true
	}
	ectx.output.SetNext(&sink)

	entity := eestream.NewEncryptingEntity(plaintext, ectx.cipher, ectx.output, plaintextSize)
	if _, err := entity.WriteTo(); err != nil {
		em.mu.Unlock()
		return nil, err
	}
	if err := ectx.output.FlushBuffer(); err != nil {
		em.mu.Unlock()
		return nil, err
	}
	ectx.nextPartNumber++
	em.mu.Unlock()

	// Size -1: a CSE data part is not size-checked client-side (see
	// Manager.UploadPart); the synthetic tail part always follows it.
	ref, err := em.Manager.UploadPart(ctx, upload, partNumber, &sink, -1, false)
	if err != nil {
		return nil, err
	}

	em.mu.Lock()
	ectx.parts = append(ectx.parts, *ref)
	em.mu.Unlock()

	return ref, nil
}

// Complete finalizes the object's cipher state, uploading the resulting
// AEAD tag or HMAC trailer as a synthetic final part, then commits the
// upload with the full part list and the object's m-encrypt-* metadata
// headers, per §4.10.
func (em *EncryptedManager) Complete(ctx context.Context, upload *Upload) error {
	em.mu.Lock()
	ectx, ok := em.contexts[upload.ID]
	if !ok {
		em.mu.Unlock()
		return mantaerrs.Multipart.New("no encryption context for upload %s", upload.ID)
	}

	tailPartNumber := ectx.nextPartNumber
	if tailPartNumber > MaxPartNumber {
		em.mu.Unlock()
		return mantaerrs.Multipart.New("encrypted upload %s has no room left for its tail part: part count already at %d", upload.ID, MaxPartNumber)
	}

	var sink bytes.Buffer
	ectx.output.SetNext(&sink)
	if err := ectx.output.ForceFlush(); err != nil {
		em.mu.Unlock()
		return err
	}

	trailer, err := ectx.cipher.Finalize()
	if err != nil {
		em.mu.Unlock()
		return err
	}
	sink.Write(trailer)

	headers := map[string]string{
		HeaderKeyID:  ectx.keyID,
		HeaderCipher: string(ectx.cipherSpec.ID),
		HeaderIV:     fmt.Sprintf("%x", ectx.cipher.IV()),
	}
	if n := ectx.cipher.BytesEncrypted(); n >= 0 {
		headers[HeaderPlaintextContentLength] = strconv.FormatInt(n, 10)
	}
	if ectx.cipherSpec.AEAD {
		headers[HeaderAEADTagLength] = strconv.Itoa(len(trailer))
	} else {
		headers[HeaderHMAC] = fmt.Sprintf("%x", trailer)
	}

	parts := append([]PartReference(nil), ectx.parts...)
	em.mu.Unlock()

	tailRef, err := em.Manager.UploadPart(ctx, upload, tailPartNumber, &sink, int64(sink.Len()), true)
	if err != nil {
		return err
	}
	parts = append(parts, *tailRef)

	if err := em.Manager.Complete(ctx, upload, parts, headers); err != nil {
		return err
	}

	em.mu.Lock()
	delete(em.contexts, upload.ID)
	em.mu.Unlock()

	return nil
}

// Abort cancels the underlying upload and discards its encryption context.
func (em *EncryptedManager) Abort(ctx context.Context, upload *Upload) error {
	if err := em.Manager.Abort(ctx, upload); err != nil {
		return err
	}
	em.mu.Lock()
	delete(em.contexts, upload.ID)
	em.mu.Unlock()
	return nil
}
