// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

// Package manta is the top-level client façade wiring the signer,
// transport, HTTP helper, MPU managers, and range reader together behind
// one Client.
package manta

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"os"
	"strconv"

	"github.com/joyent/go-manta/internal/mantaerrs"
	"github.com/joyent/go-manta/pkg/eestream"
	"github.com/joyent/go-manta/pkg/httpclient"
	"github.com/joyent/go-manta/pkg/httpsign"
	"github.com/joyent/go-manta/pkg/mantatransport"
	"github.com/joyent/go-manta/pkg/multipart"
	"github.com/joyent/go-manta/pkg/ranger"
)

// Client is the store client: it signs and issues requests, and drives the
// MPU/CSE subsystems on the caller's behalf.
type Client struct {
	cfg    Config
	signer *httpsign.Signer
	http   *httpclient.Client
	home   string

	// Multipart drives unencrypted server-side MPUs.
	Multipart *multipart.Manager
	// Encrypted drives CSE-overlaid MPUs; nil unless
	// Config.ClientEncryptionEnabled.
	Encrypted *multipart.EncryptedManager

	cipherSpec eestream.CipherSpec // zero value unless encryption is enabled
}

// New builds a Client from cfg, constructing the signer and connection
// pool. Construction fails fast on any misconfiguration (bad key, unknown
// cipher, missing required field), per §7's "fatal at construction" policy.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	signer, err := httpsign.NewSigner(httpsign.Config{
		Login:      cfg.MantaUser,
		KeyID:      cfg.MantaKeyID,
		KeyPath:    cfg.MantaKeyPath,
		KeyPEM:     cfg.MantaKeyPEM,
		Passphrase: cfg.KeyPassphrase,
	})
	if err != nil {
		return nil, err
	}

	transport := mantatransport.New(cfg.HTTPTransport)
	hc := httpclient.New(transport, signer, cfg.MantaURL, cfg.VerifyUploads)
	hc.RetryPolicy = mantatransport.RetryPolicy{MaxRetries: cfg.RetryCount}

	home := "/" + cfg.MantaUser
	mgr := multipart.NewManager(hc, home)

	c := &Client{
		cfg:       cfg,
		signer:    signer,
		http:      hc,
		home:      home,
		Multipart: mgr,
	}

	if cfg.ClientEncryptionEnabled {
		spec, err := eestream.Lookup(cfg.EncryptionAlgorithm)
		if err != nil {
			return nil, err
		}
		c.cipherSpec = spec
		c.Encrypted = multipart.NewEncryptedManager(mgr)
	}

	cfg.Logger.Infof("client constructed for %s@%s", cfg.MantaUser, cfg.MantaURL)
	return c, nil
}

// Home returns the account's home directory path, e.g. "/user".
func (c *Client) Home() string {
	return c.home
}

// Put uploads obj's data source to obj.Path, applying obj.Headers and
// obj.Metadata as request headers, per §4.11. When Config.ClientEncryptionEnabled,
// the data source is transparently encrypted first and the resulting
// m-encrypt-* metadata headers are added automatically.
func (c *Client) Put(ctx context.Context, obj *Object) (*httpclient.PutResult, error) {
	if err := obj.Data.Validate(); err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(obj.Headers)+len(obj.Metadata))
	for k, v := range obj.Headers {
		headers[k] = v
	}
	for k, v := range obj.Metadata.WireHeaders() {
		headers[k] = v
	}

	if obj.IsDirectory() {
		return c.http.PutHeaders(ctx, EncodePath(obj.Path), nil, DirectoryContentType, headers, c.warn)
	}

	source, closeSource, err := c.openDataSource(obj.Data)
	if err != nil {
		return nil, err
	}
	if closeSource != nil {
		defer closeSource()
	}

	contentType := headers["Content-Type"]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if !c.cfg.ClientEncryptionEnabled || source == nil {
		return c.http.PutHeaders(ctx, EncodePath(obj.Path), source, contentType, headers, c.warn)
	}

	ciphertext, encHeaders, err := c.encryptWholeObject(source)
	if err != nil {
		return nil, err
	}
	for k, v := range encHeaders {
		headers[k] = v
	}
	return c.http.PutHeaders(ctx, EncodePath(obj.Path), bytes.NewReader(ciphertext), contentType, headers, c.warn)
}

// openDataSource resolves obj.Data to a single io.Reader, opening a file if
// FilePath was given. The returned close func (nil if not applicable) must
// be called once the reader is fully consumed.
func (c *Client) openDataSource(d DataSource) (io.Reader, func(), error) {
	if d.IsEmpty() {
		return nil, nil, nil
	}
	if d.FilePath != "" {
		f, err := os.Open(d.FilePath)
		if err != nil {
			return nil, nil, mantaerrs.IO.Wrap(err)
		}
		return f, func() { f.Close() }, nil
	}
	r, err := d.Reader()
	if err != nil {
		return nil, nil, err
	}
	return r, nil, nil
}

// encryptWholeObject buffers source's entirety through a fresh CipherState,
// returning the finished ciphertext (including its AEAD tag or HMAC
// trailer) and the m-encrypt-* headers describing it, for a non-MPU Put.
// Buffering the whole object is a deliberate simplification for the
// single-shot upload path — MPU uploads instead stream part by part
// through EncryptedManager without ever holding the whole object in memory.
func (c *Client) encryptWholeObject(source io.Reader) ([]byte, map[string]string, error) {
	cs, err := eestream.NewCipherState(c.cipherSpec, c.cfg.EncryptionPrivateKeyBytes)
	if err != nil {
		return nil, nil, err
	}

	var out bytes.Buffer
	out.Write(cs.IV())

	stream := multipartSingleSink(&out)
	entity := eestream.NewEncryptingEntity(source, cs, stream, -1)
	if _, err := entity.WriteTo(); err != nil {
		return nil, nil, err
	}
	if err := stream.ForceFlush(); err != nil {
		return nil, nil, err
	}

	trailer, err := cs.Finalize()
	if err != nil {
		return nil, nil, err
	}
	out.Write(trailer)

	headers := map[string]string{
		multipart.HeaderKeyID:                  c.cfg.EncryptionKeyID,
		multipart.HeaderCipher:                 string(c.cipherSpec.ID),
		multipart.HeaderIV:                     hex.EncodeToString(cs.IV()),
		multipart.HeaderPlaintextContentLength: strconv.FormatInt(cs.BytesEncrypted(), 10),
	}
	if c.cipherSpec.AEAD {
		headers[multipart.HeaderAEADTagLength] = strconv.Itoa(len(trailer))
	} else {
		headers[multipart.HeaderHMAC] = hex.EncodeToString(trailer)
	}

	return out.Bytes(), headers, nil
}

// multipartSingleSink wraps out as a MultipartOutputStream with exactly one
// sink, reused here purely for its block-alignment bookkeeping so
// encryptWholeObject shares code with the MPU path instead of writing a
// second alignment implementation.
func multipartSingleSink(out io.Writer) *eestream.MultipartOutputStream {
	// The cipher catalog's block size for non-CTR ciphers is 1 (SECRETBOX)
	// or aes.BlockSize; either way a single-sink, single-flush stream never
	// needs realignment across sink switches, so any positive block size
	// is safe here — Lookup already validated it during Client construction.
	stream := eestream.NewMultipartOutputStream(1)
	stream.SetNext(out)
	return stream
}

// warn forwards a Put warning to the configured logger.
func (c *Client) warn(msg string) {
	c.cfg.Logger.Warnf("%s", msg)
}

// Get opens a seekable reader over path's plaintext content, decrypting
// transparently if the object carries CSE metadata headers. If the object
// is unencrypted and Config.ClientEncryptionEnabled, the read fails rather
// than silently returning plaintext the caller may not expect, unless
// EncryptionAuthenticationMode is Optional and PermitUnencryptedDownloads
// is set.
func (c *Client) Get(ctx context.Context, path string) (*ranger.SeekableReader, error) {
	encoded := EncodePath(path)
	meta, err := c.headEncryptionMetadata(ctx, encoded)
	if err != nil {
		return nil, err
	}

	if meta == nil {
		if c.cfg.ClientEncryptionEnabled && c.cfg.EncryptionAuthenticationMode == EncryptionAuthMandatory {
			return nil, mantaerrs.Crypto.New("object %s is not encrypted but EncryptionAuthenticationMode is Mandatory", path)
		}
		if c.cfg.ClientEncryptionEnabled && !c.cfg.PermitUnencryptedDownloads {
			return nil, mantaerrs.Crypto.New("object %s is not encrypted and PermitUnencryptedDownloads is off", path)
		}
		r, err := newSignedRanger(ctx, c.http, encoded)
		if err != nil {
			return nil, err
		}
		return ranger.NewSeekableReader(r), nil
	}

	if !c.cfg.ClientEncryptionEnabled {
		return nil, mantaerrs.Crypto.New("object %s is encrypted but this client has no encryption key configured", path)
	}

	spec, err := eestream.Lookup(eestream.CipherID(meta[multipart.HeaderCipher]))
	if err != nil {
		return nil, err
	}
	iv, err := hex.DecodeString(meta[multipart.HeaderIV])
	if err != nil {
		return nil, mantaerrs.Crypto.New("malformed %s header: %v", multipart.HeaderIV, err)
	}

	baseRanger, err := newSignedRanger(ctx, c.http, encoded)
	if err != nil {
		return nil, err
	}

	dr := &decryptingRanger{
		base: baseRanger,
		spec: spec,
		key:  c.cfg.EncryptionPrivateKeyBytes,
		iv:   iv,
		// The plaintext object is shorter than the ciphertext object by
		// the IV prefix plus the AEAD tag/HMAC trailer.
		plaintextSize: baseRanger.Size() - int64(len(iv)) - int64(spec.TagSize),
	}
	return ranger.NewSeekableReader(dr), nil
}

// headEncryptionMetadata HEADs path and extracts the m-encrypt-* headers,
// returning nil if the object carries none (i.e. is unencrypted).
func (c *Client) headEncryptionMetadata(ctx context.Context, encodedPath string) (map[string]string, error) {
	resp, err := c.http.Head(ctx, encodedPath)
	if err != nil {
		return nil, err
	}
	if resp.Header.Get(multipart.HeaderCipher) == "" {
		return nil, nil
	}
	return map[string]string{
		multipart.HeaderCipher: resp.Header.Get(multipart.HeaderCipher),
		multipart.HeaderIV:     resp.Header.Get(multipart.HeaderIV),
		multipart.HeaderKeyID:  resp.Header.Get(multipart.HeaderKeyID),
	}, nil
}

// CreateSnaplink creates linkPath as an atomic copy-by-reference of
// sourcePath, per §3's supplemented snaplink feature: a PUT of content-type
// application/json; type=link carrying a Location header naming the
// source.
func (c *Client) CreateSnaplink(ctx context.Context, sourcePath, linkPath string) error {
	headers := map[string]string{"Location": EncodePath(sourcePath)}
	_, err := c.http.PutHeaders(ctx, EncodePath(linkPath), nil, SnaplinkContentType, headers, c.warn)
	return err
}

// Delete removes path, per §4.4's status-code contract (204 expected).
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.http.Delete(ctx, EncodePath(path))
	return err
}
