// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package manta

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodePathRoundTrip(t *testing.T) {
	for i, path := range []string{
		"/user/stor/hello world.txt",
		"/user/stor/a/b/c",
		"/user/stor/",
		"/user/stor/日本語.txt",
		"/user/stor/already%20encoded",
		"",
	} {
		tag := fmt.Sprintf("#%d. %q", i, path)
		assert.Equal(t, path, DecodePath(EncodePath(path)), tag)
	}
}

func TestEncodePathEscapesSegments(t *testing.T) {
	assert.Equal(t, "/user/stor/hello%20world.txt", EncodePath("/user/stor/hello world.txt"))
	assert.Equal(t, "/user/stor/a/b", EncodePath("/user/stor/a/b"))
}

func TestDecodePathLeavesMalformedSegmentAlone(t *testing.T) {
	// "%zz" isn't valid percent-encoding; DecodePath leaves it untouched
	// rather than failing the whole path.
	assert.Equal(t, "/user/stor/%zz", DecodePath("/user/stor/%zz"))
}
