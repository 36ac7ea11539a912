// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package manta

import (
	"context"
	"crypto/md5" //nolint:gosec // test-only checksum, matches server's Computed-MD5 contract.
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joyent/go-manta/pkg/multipart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestRSAKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(key)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}

func testConfig(t *testing.T, url string) Config {
	t.Helper()
	return Config{
		MantaURL:   url,
		MantaUser:  "testuser",
		MantaKeyID: "ab:cd:ef",
		MantaKeyPEM: generateTestRSAKeyPEM(t),
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNewBuildsHome(t *testing.T) {
	c, err := New(testConfig(t, "https://manta.example.com"))
	require.NoError(t, err)
	assert.Equal(t, "/testuser", c.Home())
	assert.NotNil(t, c.Multipart)
	assert.Nil(t, c.Encrypted)
}

func TestNewWithEncryptionBuildsEncryptedManager(t *testing.T) {
	cfg := testConfig(t, "https://manta.example.com")
	cfg.ClientEncryptionEnabled = true
	cfg.EncryptionAlgorithm = "AES256/CTR/NoPadding"
	cfg.EncryptionPrivateKeyBytes = make([]byte, 32)
	cfg.EncryptionKeyID = "key-1"

	c, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c.Encrypted)
}

func TestClientPutObject(t *testing.T) {
	const body = "hello, manta"
	sum := md5.Sum([]byte(body))
	wantMD5 := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NotEmpty(t, r.Header.Get("Authorization"))
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(data))
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Computed-MD5", wantMD5)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.VerifyUploads = true
	c, err := New(cfg)
	require.NoError(t, err)

	obj := NewObject("/testuser/stor/hello.txt")
	obj.Data = NewStringSource(body)

	result, err := c.Put(context.Background(), obj)
	require.NoError(t, err)
	assert.Equal(t, `"abc123"`, result.ETag)
	assert.Equal(t, wantMD5, result.ClientMD5)
}

func TestClientPutDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DirectoryContentType, r.Header.Get("Content-Type"))
		assert.Equal(t, int64(0), r.ContentLength)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)

	obj := NewObject("/testuser/stor/adir")
	obj.MarkDirectory()

	_, err = c.Put(context.Background(), obj)
	require.NoError(t, err)
}

func TestClientPutRejectsMultipleDataSources(t *testing.T) {
	c, err := New(testConfig(t, "https://manta.example.com"))
	require.NoError(t, err)

	obj := NewObject("/testuser/stor/x")
	obj.Data = NewStringSource("a")
	obj.Data.FilePath = "/tmp/also-set"

	_, err = c.Put(context.Background(), obj)
	assert.Error(t, err)
}

func TestClientDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)
	require.NoError(t, c.Delete(context.Background(), "/testuser/stor/x"))
}

func TestClientCreateSnaplink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SnaplinkContentType, r.Header.Get("Content-Type"))
		assert.Equal(t, "/testuser/stor/source.txt", r.Header.Get("Location"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)
	err = c.CreateSnaplink(context.Background(), "/testuser/stor/source.txt", "/testuser/stor/link.txt")
	require.NoError(t, err)
}

func TestClientGetUnencrypted(t *testing.T) {
	const body = "the entire object body"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.Header().Set("Content-Length", "22")
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			rangeHeader := r.Header.Get("Range")
			require.NotEmpty(t, rangeHeader)
			w.Header().Set("Content-Range", "bytes 0-21/22")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte(body))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	c, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)

	reader, err := c.Get(context.Background(), "/testuser/stor/hello.txt")
	require.NoError(t, err)

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestClientGetEncryptedRejectedWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Header().Set(multipart.HeaderCipher, "AES256/CTR/NoPadding")
		w.Header().Set(multipart.HeaderIV, "00")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/testuser/stor/secret.txt")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no encryption key configured")
}
