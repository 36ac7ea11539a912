// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package httpsign

import (
	"crypto"
	"crypto/dsa" //nolint:staticcheck // DSA keys are part of the HTTP Signatures key-type matrix.
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"os"

	"github.com/joyent/go-manta/internal/mantaerrs"
)

// KeyType identifies the asymmetric algorithm family a signing key belongs
// to; it determines the HTTP Signatures "algorithm" parameter.
type KeyType int

// The key types this library knows how to sign with.
const (
	KeyTypeUnknown KeyType = iota
	KeyTypeRSA
	KeyTypeDSA
	KeyTypeECDSA
)

// SignatureAlgorithm returns the HTTP Signatures algorithm token for a key
// type, e.g. "rsa-sha256".
func (t KeyType) SignatureAlgorithm() string {
	switch t {
	case KeyTypeRSA:
		return "rsa-sha256"
	case KeyTypeDSA:
		return "dsa-sha256"
	case KeyTypeECDSA:
		return "ecdsa-sha256"
	default:
		return ""
	}
}

// PrivateKey wraps a parsed private key together with its classified type,
// so the signer can dispatch on KeyType without a further type switch at
// every signing call.
type PrivateKey struct {
	Type KeyType
	Key  crypto.PrivateKey
}

// LoadPrivateKeyFile reads and parses a PEM-encoded private key from disk.
// passphrase is used only if the PEM block is encrypted; pass nil for
// unencrypted keys. Failures here are fatal at construction per §4.1.
func LoadPrivateKeyFile(path string, passphrase []byte) (*PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mantaerrs.Crypto.Wrap(err)
	}
	return LoadPrivateKeyPEM(data, passphrase)
}

// LoadPrivateKeyPEM parses a PEM-encoded private key held in memory. This is
// the path used when the caller supplies in-memory key bytes instead of a
// path, per §4.1's two supported construction forms.
func LoadPrivateKeyPEM(pemBytes []byte, passphrase []byte) (*PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, mantaerrs.Crypto.New("could not decode PEM block from key material")
	}

	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // still the only stdlib path for encrypted PEM.
		if len(passphrase) == 0 {
			return nil, mantaerrs.Crypto.New("key is encrypted but no passphrase was supplied")
		}
		decrypted, err := x509.DecryptPEMBlock(block, passphrase) //nolint:staticcheck
		if err != nil {
			return nil, mantaerrs.Crypto.New("failed to decrypt PEM block: %v", err)
		}
		der = decrypted
	}

	return parsePrivateKeyDER(block.Type, der)
}

func parsePrivateKeyDER(blockType string, der []byte) (*PrivateKey, error) {
	switch blockType {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(der)
		if err != nil {
			return nil, mantaerrs.Crypto.New("unable to parse RSA private key: %v", err)
		}
		return &PrivateKey{Type: KeyTypeRSA, Key: key}, nil
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(der)
		if err != nil {
			return nil, mantaerrs.Crypto.New("unable to parse EC private key: %v", err)
		}
		return &PrivateKey{Type: KeyTypeECDSA, Key: key}, nil
	case "DSA PRIVATE KEY":
		key, err := parseDSAPrivateKey(der)
		if err != nil {
			return nil, mantaerrs.Crypto.New("unable to parse DSA private key: %v", err)
		}
		return &PrivateKey{Type: KeyTypeDSA, Key: key}, nil
	default:
		// PKCS#8 envelopes don't have a fixed PEM label in practice; try it
		// for any block type we didn't recognize above.
		key, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return nil, mantaerrs.Crypto.New("unsupported key PEM block type %q: %v", blockType, err)
		}
		return classifyPKCS8(key)
	}
}

func classifyPKCS8(key crypto.PrivateKey) (*PrivateKey, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return &PrivateKey{Type: KeyTypeRSA, Key: k}, nil
	case *ecdsa.PrivateKey:
		return &PrivateKey{Type: KeyTypeECDSA, Key: k}, nil
	case *dsa.PrivateKey:
		return &PrivateKey{Type: KeyTypeDSA, Key: k}, nil
	default:
		return nil, mantaerrs.Crypto.New("unsupported PKCS#8 key type %T", key)
	}
}

// dsaPrivateKeyASN1 mirrors the (non-standard, OpenSSL-compatible) ASN.1
// structure used by "DSA PRIVATE KEY" PEM blocks: version, p, q, g, y, x.
type dsaPrivateKeyASN1 struct {
	Version       int
	P, Q, G, Y, X *big.Int
}

func parseDSAPrivateKey(der []byte) (*dsa.PrivateKey, error) {
	// DSA private key PEM blocks have no stdlib parser; the ASN.1 fields
	// are walked manually the way legacy Java/OpenSSL tooling expects.
	var raw dsaPrivateKeyASN1
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return nil, err
	}
	key := new(dsa.PrivateKey)
	key.Parameters.P = raw.P
	key.Parameters.Q = raw.Q
	key.Parameters.G = raw.G
	key.Y = raw.Y
	key.X = raw.X
	return key, nil
}
