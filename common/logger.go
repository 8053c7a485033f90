// Package common provides shared utilities for both protocol roles.
package common

import (
	"fmt"
	"io"
	"strings"
)

// Logger is the progress-reporting seam used by the orchestrators. The
// binaries log to stdout; tests swap in a silent implementation.
type Logger interface {
	Printf(format string, args ...any)
	Header(title string)
}

type consoleLogger struct {
	w io.Writer
}

// NewLogger returns a Logger that writes human-oriented progress lines to w.
func NewLogger(w io.Writer) Logger {
	return &consoleLogger{w: w}
}

// NewQuietLogger returns a Logger that discards everything.
func NewQuietLogger() Logger {
	return &consoleLogger{w: io.Discard}
}

func (l *consoleLogger) Printf(format string, args ...any) {
	fmt.Fprintf(l.w, format+"\n", args...)
}

// Header prints a banner around title.
func (l *consoleLogger) Header(title string) {
	if title == "" {
		return
	}
	bar := 79 - len(title)
	if bar < 2 {
		bar = 2
	}
	fmt.Fprintf(l.w, "\n==%s\n= %s\n==%s\n",
		strings.Repeat("=", bar), title, strings.Repeat("-", bar))
}
