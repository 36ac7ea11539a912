// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

// Package mantalog declares the logging hook points this client calls: a
// notice when a client is built and warnings from Put. It is deliberately not a
// framework binding: the caller supplies a Logger, the way java-manta-client
// treats SLF4J as a collaborator rather than a dependency. A thin
// stdlib-backed implementation is provided so the library is usable
// standalone.
//
// Grounded on storj-storj/storage/storelogger's decorator shape (wrap an
// interface, emit a leveled log call around each operation) generalized
// from a concrete zap.Logger to this package's minimal injected interface.
package mantalog

import (
	"io"
	"log"
	"os"
)

// Logger is the minimal leveled logging surface the client calls into. It
// is satisfied by thin adapters over zap, logrus, or the standard library.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Discard is a Logger that drops every call, the default when a caller
// supplies none.
var Discard Logger = discardLogger{}

type discardLogger struct{}

func (discardLogger) Debugf(string, ...interface{}) {}
func (discardLogger) Infof(string, ...interface{})  {}
func (discardLogger) Warnf(string, ...interface{})  {}
func (discardLogger) Errorf(string, ...interface{}) {}

// standardLogger is the thin default backed by the standard library's log
// package, one line per call, level-prefixed.
type standardLogger struct {
	*log.Logger
}

// NewStandard builds a Logger writing level-prefixed lines to out. Passing
// nil writes to os.Stderr.
func NewStandard(out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}
	return &standardLogger{log.New(out, "manta: ", log.LstdFlags|log.Lmicroseconds)}
}

func (l *standardLogger) Debugf(format string, args ...interface{}) { l.Printf("[DEBUG] "+format, args...) }
func (l *standardLogger) Infof(format string, args ...interface{})  { l.Printf("[INFO] "+format, args...) }
func (l *standardLogger) Warnf(format string, args ...interface{})  { l.Printf("[WARN] "+format, args...) }
func (l *standardLogger) Errorf(format string, args ...interface{}) { l.Printf("[ERROR] "+format, args...) }
