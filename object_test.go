// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package manta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersCaseInsensitiveSetGet(t *testing.T) {
	h := Headers{}
	h.Set("Content-Type", "text/plain")
	assert.Equal(t, "text/plain", h.Get("content-type"))
	assert.Equal(t, "text/plain", h.Get("CONTENT-TYPE"))

	// Re-Set under a different case replaces the existing entry in place
	// rather than adding a duplicate key.
	h.Set("content-type", "application/json")
	assert.Len(t, h, 1)
	assert.Equal(t, "application/json", h.Get("Content-Type"))
}

func TestHeadersGetMissing(t *testing.T) {
	h := Headers{}
	assert.Equal(t, "", h.Get("x-missing"))
}

func TestMetadataWireHeaders(t *testing.T) {
	m := Metadata{}
	m.Set("owner", "alice")
	m.Set("Owner", "bob") // case-insensitive overwrite of the same entry

	wire := m.WireHeaders()
	assert.Len(t, m, 1)
	assert.Equal(t, "bob", wire.Get(MetadataPrefix+"owner"))
}

func TestDataSourceValidateRejectsMultipleKinds(t *testing.T) {
	d := DataSource{}
	require.NoError(t, d.Validate()) // zero value is valid (directory)

	d = NewBytesSource([]byte("x"))
	require.NoError(t, d.Validate())

	d.FilePath = "/tmp/also-set"
	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestDataSourceReaderKinds(t *testing.T) {
	r, err := NewBytesSource([]byte("hello")).Reader()
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, _ := r.Read(buf)
	assert.Equal(t, "hello", string(buf[:n]))

	r, err = NewStringSource("world").Reader()
	require.NoError(t, err)
	buf = make([]byte, 5)
	n, _ = r.Read(buf)
	assert.Equal(t, "world", string(buf[:n]))

	stream := strings.NewReader("streamed")
	r, err = NewStreamSource(stream).Reader()
	require.NoError(t, err)
	assert.Same(t, stream, r)

	_, err = (DataSource{FilePath: "/irrelevant"}).Reader()
	assert.Error(t, err)
}

func TestObjectMarkDirectoryClearsData(t *testing.T) {
	o := NewObject("/user/stor/dir")
	o.Data = NewBytesSource([]byte("should be cleared"))
	o.MarkDirectory()

	assert.True(t, o.IsDirectory())
	assert.True(t, o.Data.IsEmpty())
	assert.Equal(t, DirectoryContentType, o.Headers.Get("Content-Type"))
}

func TestObjectIsDirectoryDefaultFalse(t *testing.T) {
	o := NewObject("/user/stor/file")
	assert.False(t, o.IsDirectory())
}
