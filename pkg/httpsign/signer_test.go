// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package httpsign

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"testing"

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

func TestNewSignerValidation(t *testing.T) {
	keyPEM := generateTestRSAKeyPEM(t)

	for i, tt := range []struct {
		cfg       Config
		errString string
	}{
		{Config{}, "signer requires a login"},
		{Config{Login: "user"}, "signer requires a key fingerprint"},
		{Config{Login: "user", KeyID: "not a fingerprint!"}, "malformed key fingerprint"},
		{Config{Login: "user", KeyID: "ab:cd"}, "signer requires either KeyPath or KeyPEM"},
		{Config{Login: "user", KeyID: "ab:cd", KeyPEM: keyPEM}, ""},
	} {
		tag := fmt.Sprintf("#%d. %+v", i, tt)
		_, err := NewSigner(tt.cfg)
		if tt.errString == "" {
			assert.NoError(t, err, tag)
			continue
		}
		if assert.Error(t, err, tag) {
			assert.Contains(t, err.Error(), tt.errString, tag)
		}
	}
}

func TestSignerSignsRequest(t *testing.T) {
	keyPEM := generateTestRSAKeyPEM(t)
	signer, err := NewSigner(Config{
		Login: "user",
		KeyID: "ab:cd:ef",
		KeyPEM: keyPEM,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "https://manta.example.com/user/stor/x", nil)
	require.NoError(t, err)
	req.Header.Set("Date", "Tue, 01 Jan 2019 00:00:00 GMT")
	req.Host = "manta.example.com"

	require.NoError(t, signer.Sign(req))

	auth := req.Header.Get("Authorization")
	assert.Contains(t, auth, `keyId="/user/keys/ab:cd:ef"`)
	assert.Contains(t, auth, `algorithm="rsa-sha256"`)
	assert.Contains(t, auth, `headers="(request-target) date host"`)
	assert.Contains(t, auth, `signature="`)
}

func TestBuildSigningStringMissingHeader(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://manta.example.com/user/stor/x", nil)
	require.NoError(t, err)

	_, err = buildSigningString(req, []string{"(request-target)", "date"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing required header")
}
