// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

// Package httpsign implements the HTTP Signatures request-signing pipeline:
// canonicalize a request's signed headers, hash them, and sign the hash
// with the caller's asymmetric private key.
package httpsign

import (
	"crypto"
	"crypto/dsa" //nolint:staticcheck
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/joyent/go-manta/internal/mantaerrs"
)

// DefaultSignedHeaders is the minimal header set the HTTP Signatures scheme
// requires: the pseudo-header "(request-target)", "date", and "host".
var DefaultSignedHeaders = []string{"(request-target)", "date", "host"}

// Signer produces the Authorization header for outbound requests. It is
// constructed once from a key and is safe for concurrent use afterward:
// signing is pure over request state plus the current wall clock for Date.
type Signer struct {
	keyID         string // fingerprint, e.g. "ab:cd:..."
	login         string
	key           *PrivateKey
	signedHeaders []string
}

// Config collects the inputs needed to build a Signer, mirroring §4.1's two
// supported construction forms (key path or in-memory key bytes).
type Config struct {
	Login      string
	KeyID      string // key fingerprint
	KeyPath    string
	KeyPEM     []byte
	Passphrase []byte

	// SignedHeaders overrides DefaultSignedHeaders; nil uses the default.
	SignedHeaders []string
}

// NewSigner constructs a Signer from cfg. Key load failures, unsupported
// algorithms, and malformed fingerprints are all fatal here, per §4.1 and
// §7 ("Fatal at construction").
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.Login == "" {
		return nil, mantaerrs.Crypto.New("signer requires a login")
	}
	if cfg.KeyID == "" {
		return nil, mantaerrs.Crypto.New("signer requires a key fingerprint")
	}
	if !looksLikeFingerprint(cfg.KeyID) {
		return nil, mantaerrs.Crypto.New("malformed key fingerprint %q", cfg.KeyID)
	}

	var (
		key *PrivateKey
		err error
	)
	switch {
	case cfg.KeyPath != "":
		key, err = LoadPrivateKeyFile(cfg.KeyPath, cfg.Passphrase)
	case len(cfg.KeyPEM) > 0:
		key, err = LoadPrivateKeyPEM(cfg.KeyPEM, cfg.Passphrase)
	default:
		return nil, mantaerrs.Crypto.New("signer requires either KeyPath or KeyPEM")
	}
	if err != nil {
		return nil, err
	}
	if key.Type.SignatureAlgorithm() == "" {
		return nil, mantaerrs.Crypto.New("unsupported key type for signing")
	}

	headers := DefaultSignedHeaders
	if cfg.SignedHeaders != nil {
		headers = cfg.SignedHeaders
	}

	return &Signer{
		keyID:         cfg.KeyID,
		login:         cfg.Login,
		key:           key,
		signedHeaders: headers,
	}, nil
}

func looksLikeFingerprint(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == ':' {
			continue
		}
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') {
			continue
		}
		return false
	}
	return true
}

// Sign builds the canonical signing string from req's request line and the
// configured signed headers, signs it, and sets req's Authorization header.
// req must already carry a Date header (callers normally set it immediately
// before calling Sign so retries get a fresh timestamp, per §4.2).
func (s *Signer) Sign(req *http.Request) error {
	signingString, err := buildSigningString(req, s.signedHeaders)
	if err != nil {
		return err
	}

	sig, err := s.signRaw([]byte(signingString))
	if err != nil {
		return err
	}

	auth := fmt.Sprintf(
		`Signature keyId="/%s/keys/%s",algorithm=%q,headers=%q,signature=%q`,
		s.login, s.keyID, s.key.Type.SignatureAlgorithm(),
		strings.Join(s.signedHeaders, " "), base64.StdEncoding.EncodeToString(sig),
	)
	req.Header.Set("Authorization", auth)
	return nil
}

// buildSigningString canonicalizes the request-line and header values named
// in headers, one "name: value" pair per line, joined with "\n" — the same
// canonicalize-then-stringToSign shape as a AWS SigV4 canonical request,
// adapted from HMAC to asymmetric signing.
func buildSigningString(req *http.Request, headers []string) (string, error) {
	var b strings.Builder
	for i, h := range headers {
		if i > 0 {
			b.WriteByte('\n')
		}
		var value string
		switch strings.ToLower(h) {
		case "(request-target)":
			value = fmt.Sprintf("%s %s", strings.ToLower(req.Method), req.URL.RequestURI())
		case "host":
			value = req.Header.Get("Host")
			if value == "" {
				value = req.URL.Host
			}
		default:
			value = req.Header.Get(h)
			if value == "" {
				return "", mantaerrs.Crypto.New("missing required header %q for signing", h)
			}
		}
		fmt.Fprintf(&b, "%s: %s", strings.ToLower(h), value)
	}
	return b.String(), nil
}

func (s *Signer) signRaw(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)

	switch s.key.Type {
	case KeyTypeRSA:
		priv, ok := s.key.Key.(*rsa.PrivateKey)
		if !ok {
			return nil, mantaerrs.Crypto.New("key classified RSA but is %T", s.key.Key)
		}
		sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
		if err != nil {
			return nil, mantaerrs.Crypto.New("rsa signing failed: %v", err)
		}
		return sig, nil
	case KeyTypeECDSA:
		priv, ok := s.key.Key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, mantaerrs.Crypto.New("key classified ECDSA but is %T", s.key.Key)
		}
		r, ss, err := ecdsa.Sign(rand.Reader, priv, digest[:])
		if err != nil {
			return nil, mantaerrs.Crypto.New("ecdsa signing failed: %v", err)
		}
		return marshalECDSASignature(r, ss)
	case KeyTypeDSA:
		priv, ok := s.key.Key.(*dsa.PrivateKey)
		if !ok {
			return nil, mantaerrs.Crypto.New("key classified DSA but is %T", s.key.Key)
		}
		r, ss, err := dsa.Sign(rand.Reader, priv, digest[:])
		if err != nil {
			return nil, mantaerrs.Crypto.New("dsa signing failed: %v", err)
		}
		return marshalECDSASignature(r, ss)
	default:
		return nil, mantaerrs.Crypto.New("unsupported key type for signing")
	}
}

// marshalECDSASignature encodes (r, s) per the ASN.1 SEQUENCE{r, s} form
// HTTP Signatures expects for both ECDSA and DSA signatures.
func marshalECDSASignature(r, s *big.Int) ([]byte, error) {
	type ecdsaSignature struct{ R, S *big.Int }
	return asn1.Marshal(ecdsaSignature{R: r, S: s})
}
