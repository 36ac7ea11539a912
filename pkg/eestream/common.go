// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

// Package eestream implements the cipher catalog (C6), the streaming
// encrypting entity (C7), and the multipart output stream (C8) that
// together make up client-side encryption.
package eestream

import (
	"github.com/zeebo/errs"
)

// Error is the default eestream errs class.
var Error = errs.Class("eestream error")
