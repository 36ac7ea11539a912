// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package manta

import (
	"time"

	"github.com/joyent/go-manta/internal/mantaerrs"
	"github.com/joyent/go-manta/pkg/eestream"
	"github.com/joyent/go-manta/pkg/mantalog"
	"github.com/joyent/go-manta/pkg/mantatransport"
)

// EncryptionAuthenticationMode controls how strictly a download must be
// authenticated when client-side encryption is enabled, per §6.
type EncryptionAuthenticationMode int

const (
	// EncryptionAuthOptional permits downloading an unencrypted object even
	// when encryption is enabled client-side (subject to
	// PermitUnencryptedDownloads).
	EncryptionAuthOptional EncryptionAuthenticationMode = iota
	// EncryptionAuthMandatory fails any download whose object doesn't carry
	// the m-encrypt-cipher metadata header.
	EncryptionAuthMandatory
)

// Config collects every collaborator input the client needs to construct
// its signer, transport, and (optionally) its client-side encryption
// context, per §6. There is deliberately no file/env/properties loader
// here (an explicit Non-goal) — a caller's own config layer (flags, Viper,
// env) populates this struct directly.
type Config struct {
	// MantaURL is the store's base URL, e.g. "https://us-east.manta.joyent.com".
	MantaURL string
	// MantaUser is the account login used in signing and in constructed
	// paths (<home> = "/" + MantaUser).
	MantaUser string
	// MantaKeyID is the signing key's fingerprint.
	MantaKeyID string
	// MantaKeyPath is a path to a PEM private key file. Mutually exclusive
	// with MantaKeyPEM; exactly one must be set.
	MantaKeyPath string
	// MantaKeyPEM is an in-memory PEM private key. Mutually exclusive with
	// MantaKeyPath.
	MantaKeyPEM []byte
	// KeyPassphrase decrypts MantaKeyPath/MantaKeyPEM if the key is
	// passphrase-protected.
	KeyPassphrase []byte

	// HTTPTimeout bounds each request's response-header wait. Zero uses
	// mantatransport's default.
	HTTPTimeout time.Duration
	// RetryCount is the number of retries after the first attempt. Zero
	// uses mantatransport.DefaultRetryPolicy (3).
	RetryCount int
	// MaxConnections caps the connection pool. Zero uses
	// mantatransport's default.
	MaxConnections int
	// HTTPTransport holds the pool settings passed to mantatransport.New.
	// MaxConnections and HTTPTimeout above override its fields when set,
	// DNS shuffling is always turned on, and its zero fields take
	// mantatransport's defaults.
	HTTPTransport mantatransport.Config

	// VerifyUploads enables client MD5 validation of PUT responses against
	// the server-reported checksum, per §4.4.
	VerifyUploads bool

	// ClientEncryptionEnabled turns on transparent client-side encryption
	// for Put/Get, per §4.10.
	ClientEncryptionEnabled bool
	// EncryptionAlgorithm names a pkg/eestream cipher catalog entry, e.g.
	// eestream.AES256CTRNoPadding. Required if ClientEncryptionEnabled.
	EncryptionAlgorithm eestream.CipherID
	// EncryptionAuthenticationMode controls download strictness; see
	// EncryptionAuthMandatory/EncryptionAuthOptional.
	EncryptionAuthenticationMode EncryptionAuthenticationMode
	// PermitUnencryptedDownloads allows GET of a plaintext object when
	// ClientEncryptionEnabled and EncryptionAuthenticationMode is Optional.
	PermitUnencryptedDownloads bool
	// EncryptionKeyID names the key used for EncryptionPrivateKeyBytes, for
	// the m-encrypt-key-id metadata header.
	EncryptionKeyID string
	// EncryptionPrivateKeyBytes is the raw symmetric key material used for
	// client-side encryption, sized per EncryptionAlgorithm's KeySize.
	EncryptionPrivateKeyBytes []byte

	// Logger receives the client's construction notice and Put warnings
	// (such as a missing server checksum). Nil uses mantalog.Discard.
	Logger mantalog.Logger
}

// withDefaults returns a copy of cfg with zero-valued fields replaced by
// this library's pinned defaults: 3 retries, DNS shuffling on, the
// transport defaults of mantatransport.Config.WithDefaults (8 KiB socket
// buffer among them), and a discarding logger.
func (cfg Config) withDefaults() Config {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = mantatransport.DefaultRetryPolicy.MaxRetries
	}
	if cfg.MaxConnections > 0 {
		cfg.HTTPTransport.MaxConnections = cfg.MaxConnections
	}
	if cfg.HTTPTimeout > 0 {
		cfg.HTTPTransport.ResponseHeaderTimeout = cfg.HTTPTimeout
	}
	cfg.HTTPTransport.ShuffleDNS = true
	cfg.HTTPTransport = cfg.HTTPTransport.WithDefaults()
	if cfg.Logger == nil {
		cfg.Logger = mantalog.Discard
	}
	return cfg
}

// validate fails fast on a Config that can't construct a working Client,
// per §7's "fatal at construction" policy for signer/crypto misconfiguration.
func (cfg Config) validate() error {
	if cfg.MantaURL == "" {
		return mantaerrs.Crypto.New("config requires MantaURL")
	}
	if cfg.MantaUser == "" {
		return mantaerrs.Crypto.New("config requires MantaUser")
	}
	if cfg.MantaKeyID == "" {
		return mantaerrs.Crypto.New("config requires MantaKeyID")
	}
	if cfg.MantaKeyPath == "" && len(cfg.MantaKeyPEM) == 0 {
		return mantaerrs.Crypto.New("config requires either MantaKeyPath or MantaKeyPEM")
	}
	if cfg.ClientEncryptionEnabled {
		if cfg.EncryptionAlgorithm == "" {
			return mantaerrs.Crypto.New("config enables client encryption but names no EncryptionAlgorithm")
		}
		if _, err := eestream.Lookup(cfg.EncryptionAlgorithm); err != nil {
			return err
		}
		if len(cfg.EncryptionPrivateKeyBytes) == 0 {
			return mantaerrs.Crypto.New("config enables client encryption but supplies no EncryptionPrivateKeyBytes")
		}
		if cfg.EncryptionKeyID == "" {
			return mantaerrs.Crypto.New("config enables client encryption but names no EncryptionKeyID")
		}
	}
	return nil
}
