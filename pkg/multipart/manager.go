// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

// Package multipart implements the server-side MPU manager (C9) and its
// client-side-encryption overlay (C10).
//
// Grounded on LeeDigitalWorks-zapfs/pkg/metadata/service/multipart/service.go's
// Service interface shape (CreateUpload/UploadPart/CompleteUpload/AbortUpload/
// ListParts) and pkg/types/multipart.go's MultipartUpload/MultipartPart
// structs, renamed and regrouped to this spec's field set.
package multipart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	uuid "github.com/satori/go.uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joyent/go-manta/internal/mantaerrs"
	"github.com/joyent/go-manta/pkg/httpclient"
)

// MinPartSize is the minimum size (other than possibly the last part) an
// uploaded part must meet, per §3's MPU invariants.
const MinPartSize = 5 * 1024 * 1024

// MaxPartNumber is the largest allowed 1-based part number, per §3.
const MaxPartNumber = 10_000

// UploadState is the MPU lifecycle state machine's current state, per §3:
// CREATED → FINALIZING(COMMIT|ABORT) → {COMPLETED, ABORTED}; UNKNOWN when
// the server's response cannot be classified.
type UploadState int

// The MPU lifecycle states.
const (
	StateUnknown UploadState = iota
	StateCreated
	StateCommitting
	StateAborting
	StateCompleted
	StateAborted
)

func (s UploadState) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateCommitting:
		return "COMMITTING"
	case StateAborting:
		return "ABORTING"
	case StateCompleted:
		return "COMPLETED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Upload identifies an in-progress server-side multipart upload, per §3's
// "Multipart upload (MPU)" data model.
type Upload struct {
	ID             uuid.UUID
	ObjectPath     string
	PartsDirectory string
}

// PartReference is the tuple of (part number, object path, entity tag)
// created when the store accepts a part PUT, per §3.
type PartReference struct {
	PartNumber int
	ObjectPath string
	ETag       string
}

// Manager drives the server-side MPU state machine over an httpclient.Client.
type Manager struct {
	HTTP *httpclient.Client
	Home string // e.g. "/user"
}

// NewManager builds a Manager rooted at home (the account's home directory,
// e.g. "/user"), issuing requests through client.
func NewManager(client *httpclient.Client, home string) *Manager {
	return &Manager{HTTP: client, Home: home}
}

type initiateRequestBody struct {
	ObjectPath string            `json:"objectPath"`
	Headers    map[string]string `json:"headers,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type initiateResponseBody struct {
	ID             string `json:"id"`
	PartsDirectory string `json:"partsDirectory"`
}

// Initiate starts a new MPU targeting path, per §4.9: POST <home>/uploads
// with {objectPath, headers, metadata}, expecting 201 with {id,
// partsDirectory} in the response.
func (m *Manager) Initiate(ctx context.Context, path string, metadata, headers map[string]string) (*Upload, error) {
	body, err := json.Marshal(initiateRequestBody{ObjectPath: path, Headers: headers, Metadata: metadata})
	if err != nil {
		return nil, mantaerrs.Multipart.Wrap(err)
	}

	resp, err := m.HTTP.Post(ctx, m.Home+"/uploads", body, "application/json", http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var parsed initiateResponseBody
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, mantaerrs.Multipart.New("malformed initiate response: %v", err)
	}
	if parsed.ID == "" || parsed.PartsDirectory == "" {
		return nil, mantaerrs.Multipart.New("initiate response missing required field (id=%q partsDirectory=%q)",
			parsed.ID, parsed.PartsDirectory)
	}

	id, err := uuid.FromString(parsed.ID)
	if err != nil {
		return nil, mantaerrs.Multipart.New("initiate response carries an invalid upload id %q: %v", parsed.ID, err)
	}

	return &Upload{ID: id, ObjectPath: path, PartsDirectory: parsed.PartsDirectory}, nil
}

// UploadPart uploads one part's content, per §4.9: PUT
// <partsDirectory>/<partNumber>, validating 1 <= partNumber <= 10000 and,
// when size is known and isLastPart is false, that it meets MinPartSize —
// every part other than the last must clear the minimum, per §3. size may
// be -1 when the entity's length isn't known up front (e.g. a streaming
// CSE part), in which case the size check is skipped — the server is the
// final arbiter.
func (m *Manager) UploadPart(ctx context.Context, upload *Upload, partNumber int, entity io.Reader, size int64, isLastPart bool) (*PartReference, error) {
	if partNumber < 1 || partNumber > MaxPartNumber {
		return nil, mantaerrs.Multipart.New("part number %d out of range [1, %d]", partNumber, MaxPartNumber)
	}
	if !isLastPart && size >= 0 && size < MinPartSize {
		return nil, mantaerrs.Multipart.New("part %d is %d bytes, below the %d byte minimum", partNumber, size, MinPartSize)
	}

	path := fmt.Sprintf("%s/%d", upload.PartsDirectory, partNumber)
	result, err := m.HTTP.Put(ctx, path, entity, "application/octet-stream", nil)
	if err != nil {
		return nil, err
	}
	if result.ETag == "" {
		return nil, mantaerrs.Multipart.New("part %d response carries no ETag", partNumber)
	}

	return &PartReference{PartNumber: partNumber, ObjectPath: upload.ObjectPath, ETag: result.ETag}, nil
}

// ListParts reads the parts directory's whole newline-delimited JSON
// listing in one request and returns its entries, per §4.9.
func (m *Manager) ListParts(ctx context.Context, upload *Upload) ([]PartReference, error) {
	resp, err := m.HTTP.Get(ctx, upload.PartsDirectory)
	if err != nil {
		return nil, err
	}

	var parts []PartReference
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	for dec.More() {
		var entry struct {
			Name string `json:"name"`
			ETag string `json:"etag"`
		}
		if err := dec.Decode(&entry); err != nil {
			return nil, mantaerrs.Multipart.New("malformed parts listing entry: %v", err)
		}
		var num int
		if _, err := fmt.Sscanf(entry.Name, "%d", &num); err != nil {
			continue // skip non-numeric entries (e.g. "state")
		}
		parts = append(parts, PartReference{PartNumber: num, ObjectPath: upload.ObjectPath, ETag: entry.ETag})
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts, nil
}

// GetPart resolves a single part's entity tag via HEAD
// <partsDirectory>/<partNumber>, returning nil (not an error) on 404 per
// §4.9.
func (m *Manager) GetPart(ctx context.Context, upload *Upload, partNumber int) (*PartReference, error) {
	path := fmt.Sprintf("%s/%d", upload.PartsDirectory, partNumber)
	resp, err := m.HTTP.Head(ctx, path)
	if err != nil {
		if he, ok := mantaerrs.AsHTTPError(err); ok && he.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &PartReference{PartNumber: partNumber, ObjectPath: upload.ObjectPath, ETag: resp.Header.Get("ETag")}, nil
}

type stateResponseBody struct {
	State      string `json:"state"`
	Type       string `json:"type"`
	ObjectPath string `json:"objectPath"`
}

// GetStatus resolves the upload's current state via GET
// <partsDirectory>/state, per §4.9's state mapping.
func (m *Manager) GetStatus(ctx context.Context, upload *Upload) (UploadState, error) {
	resp, err := m.HTTP.Get(ctx, upload.PartsDirectory+"/state")
	if err != nil {
		return StateUnknown, err
	}

	var parsed stateResponseBody
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return StateUnknown, mantaerrs.Multipart.New("malformed state response: %v", err)
	}

	switch parsed.State {
	case "CREATED":
		return StateCreated, nil
	case "FINALIZING":
		switch parsed.Type {
		case "COMMIT":
			return StateCommitting, nil
		case "ABORT":
			return StateAborting, nil
		default:
			return StateUnknown, nil
		}
	default:
		return StateUnknown, nil
	}
}

// Abort cancels upload, per §4.9: POST <partsDirectory>/abort, expecting
// 204. Idempotent up to 404, per §8's testable property.
func (m *Manager) Abort(ctx context.Context, upload *Upload) error {
	_, err := m.HTTP.Post(ctx, upload.PartsDirectory+"/abort", nil, "", http.StatusNoContent, http.StatusNotFound)
	return err
}

type commitRequestBody struct {
	Parts   []string          `json:"parts"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Complete commits upload, assembling it from parts in ascending part-number
// order, per §4.9 and §9's resolved Open Question: POST
// <partsDirectory>/commit {"parts": [etag, ...]}, expecting 204. headers, if
// non-nil, are applied to the assembled object — EncryptedManager uses this
// to set the m-encrypt-* metadata headers that are only known once the
// final cipher block has been produced.
func (m *Manager) Complete(ctx context.Context, upload *Upload, parts []PartReference, headers map[string]string) error {
	sorted := append([]PartReference(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	if err := ValidateSequentialPartNumbers(sorted); err != nil {
		return err
	}

	etags := make([]string, len(sorted))
	for i, p := range sorted {
		etags[i] = p.ETag
	}

	body, err := json.Marshal(commitRequestBody{Parts: etags, Headers: headers})
	if err != nil {
		return mantaerrs.Multipart.Wrap(err)
	}

	_, err = m.HTTP.Post(ctx, upload.PartsDirectory+"/commit", body, "application/json", http.StatusNoContent)
	return err
}

// ValidateSequentialPartNumbers fails if parts (assumed pre-sorted
// ascending) contains a gap or a duplicate part number, per §4.9.
func ValidateSequentialPartNumbers(parts []PartReference) error {
	for i, p := range parts {
		want := i + 1
		if p.PartNumber != want {
			return mantaerrs.Multipart.New("non-sequential part numbers: expected part %d, found %d", want, p.PartNumber)
		}
	}
	return nil
}

// UploadPartsConcurrently uploads each entry of parts (keyed by part
// number) in parallel using errgroup's first-error-wins contract, per §5:
// "Non-encrypted MPU allows parallel part uploads". Each part's reader must
// not be shared with any other concurrent operation.
func (m *Manager) UploadPartsConcurrently(ctx context.Context, upload *Upload, parts map[int]PartSource) ([]PartReference, error) {
	refs := make([]PartReference, len(parts))
	numbers := make([]int, 0, len(parts))
	for n := range parts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	g, gctx := errgroup.WithContext(ctx)
	for i, n := range numbers {
		i, n := i, n
		src := parts[n]
		g.Go(func() error {
			ref, err := m.UploadPart(gctx, upload, n, src.Reader, src.Size, src.IsLastPart)
			if err != nil {
				return err
			}
			refs[i] = *ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// PartSource is one part's content, declared size (-1 if unknown), and
// whether it is the upload's final part (exempting it from MinPartSize),
// the input to UploadPartsConcurrently.
type PartSource struct {
	Reader     io.Reader
	Size       int64
	IsLastPart bool
}

// WaitForCompletion polls GetStatus every interval until the upload leaves
// the FINALIZING states or maxPolls is exhausted, per §5's
// "WaitForCompletion(ctx, upload, interval, maxPolls, onTimeout)" polling
// primitive for long server-side operations.
func (m *Manager) WaitForCompletion(ctx context.Context, upload *Upload, interval time.Duration, maxPolls int, onTimeout func()) (UploadState, error) {
	for i := 0; i < maxPolls; i++ {
		state, err := m.GetStatus(ctx, upload)
		if err != nil {
			return StateUnknown, err
		}
		if state != StateCommitting && state != StateAborting {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return StateUnknown, mantaerrs.IO.Wrap(ctx.Err())
		case <-time.After(interval):
		}
	}
	if onTimeout != nil {
		onTimeout()
	}
	return StateUnknown, mantaerrs.Multipart.New("upload %s did not finalize within %d polls", upload.ID, maxPolls)
}
