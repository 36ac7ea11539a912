// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package manta

import (
	"net/url"
	"strings"
)

// EncodePath splits path on "/", percent-encodes each non-empty segment as
// UTF-8, and rejoins with "/", per §6's path-encoding rule. Leading and
// trailing slashes are preserved as empty segments that encode to nothing.
func EncodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s == "" {
			continue
		}
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// DecodePath is EncodePath's inverse: percent-decode each segment. Malformed
// percent-encoding in a segment leaves that segment untouched rather than
// failing the whole path, since decoding is best-effort for display/logging.
func DecodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s == "" {
			continue
		}
		if decoded, err := url.PathUnescape(s); err == nil {
			segments[i] = decoded
		}
	}
	return strings.Join(segments, "/")
}
