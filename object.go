// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package manta

import (
	"io"
	"strings"

	"github.com/joyent/go-manta/internal/mantaerrs"
)

// MetadataPrefix is the reserved prefix a store uses to distinguish
// user-supplied metadata from ordinary HTTP headers, per §4.11.
const MetadataPrefix = "m-"

// DirectoryContentType is the content-type a directory object carries.
const DirectoryContentType = "application/json; type=directory"

// SnaplinkContentType is the content-type a snaplink object carries; its
// Location header names the link's target object.
const SnaplinkContentType = "application/json; type=link"

// Headers is a case-insensitive HTTP header bag, per §4.11.
type Headers map[string]string

// Set stores value under key, case-insensitively: any existing entry whose
// key matches case-insensitively is replaced in place rather than
// duplicated.
func (h Headers) Set(key, value string) {
	h.setCanonical(canonicalHeaderKey(h, key), value)
}

func (h Headers) setCanonical(key, value string) {
	h[key] = value
}

// Get looks up key case-insensitively, returning "" if absent.
func (h Headers) Get(key string) string {
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// canonicalHeaderKey returns the existing key in h that matches newKey
// case-insensitively, or newKey itself if there is no existing match —
// this is what makes Set idempotent under case variation.
func canonicalHeaderKey(h Headers, newKey string) string {
	for k := range h {
		if strings.EqualFold(k, newKey) {
			return k
		}
	}
	return newKey
}

// Metadata is the case-insensitive user-metadata bag a Headers pair shares
// its lookup semantics with, but is namespaced under MetadataPrefix on the
// wire, per §4.11.
type Metadata map[string]string

// Set stores value under key (without the m- prefix; callers name bare
// metadata keys), case-insensitively.
func (m Metadata) Set(key, value string) {
	m[canonicalHeaderKey(Headers(m), key)] = value
}

// Get looks up key case-insensitively.
func (m Metadata) Get(key string) string {
	return Headers(m).Get(key)
}

// WireHeaders renders m as the full set of m-prefixed header lines to send
// with a request.
func (m Metadata) WireHeaders() Headers {
	out := make(Headers, len(m))
	for k, v := range m {
		out[MetadataPrefix+k] = v
	}
	return out
}

// DataSource is exactly one of the four data-source kinds a PUT may carry,
// per §4.11: stream, file path, byte array, or string. The zero value (no
// field set) means "no data": directory creation uses it, and a Put of a
// plain object with it sends an empty body.
type DataSource struct {
	Stream   io.Reader
	FilePath string
	Bytes    []byte
	String   string

	hasStream bool
	hasBytes  bool
	hasString bool
}

// NewStreamSource wraps an io.Reader as a DataSource.
func NewStreamSource(r io.Reader) DataSource {
	return DataSource{Stream: r, hasStream: true}
}

// NewFileSource wraps a local file path as a DataSource. The caller's Put
// implementation is responsible for opening it.
func NewFileSource(path string) DataSource {
	return DataSource{FilePath: path}
}

// NewBytesSource wraps an in-memory byte slice as a DataSource.
func NewBytesSource(b []byte) DataSource {
	return DataSource{Bytes: b, hasBytes: true}
}

// NewStringSource wraps a string as a DataSource.
func NewStringSource(s string) DataSource {
	return DataSource{String: s, hasString: true}
}

// IsEmpty reports whether no data source kind is set (the zero value).
func (d DataSource) IsEmpty() bool {
	return !d.hasStream && !d.hasBytes && !d.hasString && d.FilePath == ""
}

// count returns how many of the four kinds are populated, for Validate.
func (d DataSource) count() int {
	n := 0
	if d.hasStream {
		n++
	}
	if d.FilePath != "" {
		n++
	}
	if d.hasBytes {
		n++
	}
	if d.hasString {
		n++
	}
	return n
}

// Validate enforces §4.11's "exactly one data source permitted per PUT"
// invariant, except that zero sources is allowed (directory creation).
func (d DataSource) Validate() error {
	if n := d.count(); n > 1 {
		return mantaerrs.Multipart.New("data source must be exactly one of stream, file path, bytes, or string; got %d", n)
	}
	return nil
}

// Reader opens d as a single io.Reader, for a Put implementation that
// doesn't need to special-case each kind. Opening a FilePath source is the
// caller's (Client.Put's) job since that requires OS access this package
// doesn't otherwise need.
func (d DataSource) Reader() (io.Reader, error) {
	switch {
	case d.hasStream:
		return d.Stream, nil
	case d.hasBytes:
		return strings.NewReader(string(d.Bytes)), nil
	case d.hasString:
		return strings.NewReader(d.String), nil
	default:
		return nil, mantaerrs.Multipart.New("data source has no in-memory content to read (did you mean Client.Put, which opens FilePath itself?)")
	}
}

// Object is the store's object model (C11): a path, its HTTP headers,
// user-metadata, and (for writes) the data to upload.
type Object struct {
	Path     string
	Headers  Headers
	Metadata Metadata
	Data     DataSource
}

// NewObject builds an Object targeting path with empty header/metadata
// bags.
func NewObject(path string) *Object {
	return &Object{Path: path, Headers: Headers{}, Metadata: Metadata{}}
}

// IsDirectory reports whether o is marked as a directory via its
// content-type header.
func (o *Object) IsDirectory() bool {
	return o.Headers.Get("Content-Type") == DirectoryContentType
}

// MarkDirectory sets o's content-type to the directory sentinel and clears
// any data source, since a directory object carries no body.
func (o *Object) MarkDirectory() {
	o.Headers.Set("Content-Type", DirectoryContentType)
	o.Data = DataSource{}
}
