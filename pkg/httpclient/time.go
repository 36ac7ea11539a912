// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package httpclient

import "time"

// nowFunc is indirected so tests can pin the Date header to a fixed time.
var nowFunc = time.Now
