// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// logWriter passes log output on to stderr, or to the live display's bypass
// writer while the live display is active.
type logWriter struct {
	mu sync.Mutex
	w  io.Writer
}

var logOutput = &logWriter{w: os.Stderr}

func (l *logWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Redirect the log output to the specified writer, returning a function to
// restore the previous writer.
func (l *logWriter) Redirect(w io.Writer) (restore func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.w
	l.w = w
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.w = prev
	}
}

// newLogger returns a tinted logger writing to w, which also becomes the
// default logger. Colors are used only when stderr is a terminal.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(os.Stderr),
	}))
	slog.SetDefault(log)
	return log
}

// isTerminal returns true if w is a file connected to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
