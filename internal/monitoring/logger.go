// Package monitoring routes the tool's diagnostic output.
package monitoring

import (
	"io"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger, e.g. to capture output in tests.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf receives detail only wanted with debug logging. It is muted until
// SetLevel enables it.
var Debugf func(format string, v ...interface{}) = nop

func nop(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = nop
		return
	}
	Logf = f
}

// SetLevel routes Logf and Debugf for one of the levels "quiet", "info" or
// "debug". Unknown levels behave like "info". Debug lines go to the current
// Logf, so SetLogger must be called first when both are used.
func SetLevel(level string) {
	switch level {
	case "quiet":
		Logf = nop
		Debugf = nop
	case "debug":
		logf := Logf
		Debugf = func(format string, v ...interface{}) { logf("debug: "+format, v...) }
	default:
		Debugf = nop
	}
}

// NewLogger returns a Logf-compatible function writing to w with the
// standard timestamp flags.
func NewLogger(w io.Writer, prefix string) func(format string, v ...interface{}) {
	return log.New(w, prefix, log.LstdFlags).Printf
}

// DebugLogger adapts Debugf to loggers that take a Debugf method.
type DebugLogger struct{}

// Debugf forwards to the package Debugf.
func (DebugLogger) Debugf(format string, v ...interface{}) { Debugf(format, v...) }
