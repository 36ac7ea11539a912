// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package multipart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyent/go-manta/pkg/httpclient"
)

type noopSigner struct{}

func (noopSigner) Sign(req *http.Request) error { return nil }

func newTestManager(t *testing.T, handler http.Handler) (*Manager, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := httpclient.New(srv.Client(), noopSigner{}, srv.URL, false)
	return NewManager(client, "/testuser"), srv
}

func TestManagerInitiate(t *testing.T) {
	m, srv := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/testuser/uploads", r.URL.Path)
		var body initiateRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "/testuser/stor/foo", body.ObjectPath)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(initiateResponseBody{
			ID:             "7c9e6679-7425-40de-944b-e07fc1f90ae7",
			PartsDirectory: "/testuser/uploads/7/7c9e6679-7425-40de-944b-e07fc1f90ae7",
		})
	}))
	defer srv.Close()

	upload, err := m.Initiate(context.Background(), "/testuser/stor/foo", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/testuser/uploads/7/7c9e6679-7425-40de-944b-e07fc1f90ae7", upload.PartsDirectory)
}

func TestManagerUploadPartValidatesPartNumber(t *testing.T) {
	m := &Manager{Home: "/testuser"}
	upload := &Upload{PartsDirectory: "/testuser/uploads/x"}

	_, err := m.UploadPart(context.Background(), upload, 0, strings.NewReader("x"), 1, false)
	assert.Error(t, err)

	_, err = m.UploadPart(context.Background(), upload, MaxPartNumber+1, strings.NewReader("x"), 1, false)
	assert.Error(t, err)
}

func TestManagerUploadPartRejectsUndersizedNonFinalPart(t *testing.T) {
	m := &Manager{Home: "/testuser"}
	upload := &Upload{PartsDirectory: "/testuser/uploads/x"}

	_, err := m.UploadPart(context.Background(), upload, 1, strings.NewReader("tiny"), 4, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "below the")
}

func TestManagerUploadPartAllowsUndersizedFinalPart(t *testing.T) {
	m, srv := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/testuser/uploads/x/1", r.URL.Path)
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	upload := &Upload{PartsDirectory: "/testuser/uploads/x"}
	ref, err := m.UploadPart(context.Background(), upload, 1, strings.NewReader("tiny"), 4, true)
	require.NoError(t, err)
	assert.Equal(t, `"abc123"`, ref.ETag)
}

func TestManagerCompleteValidatesSequentialParts(t *testing.T) {
	m := &Manager{Home: "/testuser"}
	upload := &Upload{PartsDirectory: "/testuser/uploads/x"}

	parts := []PartReference{
		{PartNumber: 1, ETag: `"a"`},
		{PartNumber: 3, ETag: `"c"`},
	}
	err := m.Complete(context.Background(), upload, parts, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "non-sequential")
}

func TestManagerCompleteSendsAscendingETagsAndHeaders(t *testing.T) {
	m, srv := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/testuser/uploads/x/commit", r.URL.Path)
		var body commitRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{`"a"`, `"b"`}, body.Parts)
		assert.Equal(t, "value", body.Headers["m-custom"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	upload := &Upload{PartsDirectory: "/testuser/uploads/x"}
	parts := []PartReference{
		{PartNumber: 2, ETag: `"b"`},
		{PartNumber: 1, ETag: `"a"`},
	}
	err := m.Complete(context.Background(), upload, parts, map[string]string{"m-custom": "value"})
	require.NoError(t, err)
}

func TestManagerGetStatusMapsFinalizingStates(t *testing.T) {
	for _, tt := range []struct {
		state, typ string
		want       UploadState
	}{
		{"CREATED", "", StateCreated},
		{"FINALIZING", "COMMIT", StateCommitting},
		{"FINALIZING", "ABORT", StateAborting},
	} {
		tag := fmt.Sprintf("%+v", tt)
		m, srv := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(stateResponseBody{State: tt.state, Type: tt.typ})
		}))

		got, err := m.GetStatus(context.Background(), &Upload{PartsDirectory: "/testuser/uploads/x"})
		require.NoError(t, err, tag)
		assert.Equal(t, tt.want, got, tag)
		srv.Close()
	}
}

func TestManagerGetPartReturnsNilOn404(t *testing.T) {
	m, srv := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ref, err := m.GetPart(context.Background(), &Upload{PartsDirectory: "/testuser/uploads/x"}, 5)
	require.NoError(t, err)
	assert.Nil(t, ref)
}
