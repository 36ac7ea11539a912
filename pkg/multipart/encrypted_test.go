// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package multipart

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyent/go-manta/pkg/eestream"
	"github.com/joyent/go-manta/pkg/httpclient"
)

// fakeStore assembles PUT parts in memory and serves the minimal MPU
// protocol surface EncryptedManager exercises, so the test can assert on
// the assembled ciphertext and final commit headers.
type fakeStore struct {
	mu             sync.Mutex
	partsDirectory string
	parts          map[int][]byte
	committed      bool
	commitHeaders  map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{partsDirectory: "/testuser/uploads/1/fixed-id", parts: make(map[int][]byte)}
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/testuser/uploads":
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(initiateResponseBody{
			ID:             "00000000-0000-0000-0000-000000000001",
			PartsDirectory: f.partsDirectory,
		})
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, f.partsDirectory+"/"):
		numStr := strings.TrimPrefix(r.URL.Path, f.partsDirectory+"/")
		n, err := strconv.Atoi(numStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body := new(bytes.Buffer)
		_, _ = body.ReadFrom(r.Body)
		f.mu.Lock()
		f.parts[n] = body.Bytes()
		f.mu.Unlock()
		w.Header().Set("ETag", fmt.Sprintf(`"etag-%d"`, n))
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && r.URL.Path == f.partsDirectory+"/commit":
		var body commitRequestBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.committed = true
		f.commitHeaders = body.Headers
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// assembled concatenates every uploaded part in ascending part-number order.
func (f *fakeStore) assembled() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for n := range f.parts {
		if n > max {
			max = n
		}
	}
	var out []byte
	for n := 1; n <= max; n++ {
		out = append(out, f.parts[n]...)
	}
	return out
}

func newTestEncryptedManager(t *testing.T, store *fakeStore) (*EncryptedManager, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(store)
	client := httpclient.New(srv.Client(), noopSigner{}, srv.URL, false)
	return NewEncryptedManager(NewManager(client, "/testuser")), srv
}

func TestEncryptedManagerRoundTripCTR(t *testing.T) {
	store := newFakeStore()
	em, srv := newTestEncryptedManager(t, store)
	defer srv.Close()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	ctx := context.Background()
	upload, err := em.Initiate(ctx, "/testuser/stor/obj", eestream.AES256CTRNoPadding, "my-key-id", key, nil)
	require.NoError(t, err)

	part1 := bytes.Repeat([]byte("A"), 5*1024*1024)
	part2 := bytes.Repeat([]byte("B"), 1024)

	_, err = em.UploadPart(ctx, upload, 1, bytes.NewReader(part1), int64(len(part1)))
	require.NoError(t, err)
	_, err = em.UploadPart(ctx, upload, 2, bytes.NewReader(part2), int64(len(part2)))
	require.NoError(t, err)

	require.NoError(t, em.Complete(ctx, upload))

	assert.True(t, store.committed)
	assert.Equal(t, "my-key-id", store.commitHeaders[HeaderKeyID])
	assert.Equal(t, string(eestream.AES256CTRNoPadding), store.commitHeaders[HeaderCipher])
	assert.NotEmpty(t, store.commitHeaders[HeaderIV])
	assert.Equal(t, strconv.Itoa(len(part1)+len(part2)), store.commitHeaders[HeaderPlaintextContentLength])
	assert.NotEmpty(t, store.commitHeaders[HeaderHMAC])
	assert.Empty(t, store.commitHeaders[HeaderAEADTagLength])

	// The assembled ciphertext is: 16-byte IV, then CTR ciphertext for
	// part1+part2, then a 32-byte HMAC-SHA256 trailer.
	all := store.assembled()
	spec, err := eestream.Lookup(eestream.AES256CTRNoPadding)
	require.NoError(t, err)
	assert.Equal(t, spec.IVSize+len(part1)+len(part2)+spec.TagSize, len(all))
}

func TestEncryptedManagerRoundTripNonBlockAlignedParts(t *testing.T) {
	store := newFakeStore()
	em, srv := newTestEncryptedManager(t, store)
	defer srv.Close()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	ctx := context.Background()
	upload, err := em.Initiate(ctx, "/testuser/stor/obj", eestream.AES256CTRNoPadding, "my-key-id", key, nil)
	require.NoError(t, err)

	// Neither part size is a multiple of AES's 16-byte block size — a part
	// boundary is not a block boundary, and UploadPart must not fail here.
	part1 := bytes.Repeat([]byte("A"), 5*1024*1024+3)
	part2 := bytes.Repeat([]byte("B"), 1024+7)

	_, err = em.UploadPart(ctx, upload, 1, bytes.NewReader(part1), int64(len(part1)))
	require.NoError(t, err)
	_, err = em.UploadPart(ctx, upload, 2, bytes.NewReader(part2), int64(len(part2)))
	require.NoError(t, err)

	require.NoError(t, em.Complete(ctx, upload))

	assert.True(t, store.committed)
	all := store.assembled()
	spec, err := eestream.Lookup(eestream.AES256CTRNoPadding)
	require.NoError(t, err)
	assert.Equal(t, spec.IVSize+len(part1)+len(part2)+spec.TagSize, len(all))
}

func TestEncryptedManagerRejectsOutOfOrderParts(t *testing.T) {
	store := newFakeStore()
	em, srv := newTestEncryptedManager(t, store)
	defer srv.Close()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	ctx := context.Background()
	upload, err := em.Initiate(ctx, "/testuser/stor/obj", eestream.AES256CTRNoPadding, "k", key, nil)
	require.NoError(t, err)

	_, err = em.UploadPart(ctx, upload, 2, strings.NewReader("x"), 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ascending part numbers")
}

func TestEncryptedManagerAbortDiscardsContext(t *testing.T) {
	store := newFakeStore()
	em, srv := newTestEncryptedManager(t, store)
	defer srv.Close()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	ctx := context.Background()
	upload, err := em.Initiate(ctx, "/testuser/stor/obj", eestream.AES256CTRNoPadding, "k", key, nil)
	require.NoError(t, err)

	require.NoError(t, em.Abort(ctx, upload))

	_, err = em.UploadPart(ctx, upload, 1, strings.NewReader("x"), 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no encryption context")
}
