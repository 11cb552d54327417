// Package hlog builds the daemon's logr.Logger on top of zerolog.
//
// On a terminal the output is human readable. Otherwise it is JSON, written
// to a rotating file when one is configured and to stderr (journald) when not.
package hlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings for file output.
const (
	MaxSizeMB  = 10
	MaxBackups = 5
	MaxAgeDays = 28
)

// Options selects level and destination.
type Options struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	// debug enables V(1) messages.
	Level string

	// File, when set and not on a terminal, receives rotated JSON logs.
	File string

	// Output overrides the destination. Used by tests.
	Output io.Writer

	// Console forces human readable output regardless of Output.
	Console bool
}

// New creates the root logger. The returned closer releases the log file and
// is never nil.
func New(opts Options) (logr.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Discard(), nopCloser{}, err
	}

	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"

	w, closer, console, err := writer(opts)
	if err != nil {
		return logr.Discard(), nopCloser{}, err
	}

	if console {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !isColorTerminal(),
			TimeFormat: time.RFC3339,
		}
	}

	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return zerologr.New(&zl), closer, nil
}

// ParseLevel converts a level name to a zerolog level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

func writer(opts Options) (io.Writer, io.Closer, bool, error) {
	if opts.Output != nil {
		return opts.Output, nopCloser{}, opts.Console, nil
	}

	if IsTerminal() {
		return os.Stderr, nopCloser{}, true, nil
	}

	if opts.File == "" {
		return os.Stderr, nopCloser{}, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, nil, false, fmt.Errorf("create log directory: %w", err)
	}

	// Setup rotating logger
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		MaxAge:     MaxAgeDays,
		Compress:   true,
	}
	return lj, lj, false, nil
}

// IsTerminal reports whether stderr is attached to a terminal.
func IsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func isColorTerminal() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return IsTerminal()
}

// IsContextCancellation checks if an error is due to context cancellation.
func IsContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ErrorIfNotCanceled logs an error only if it's not due to context cancellation.
func ErrorIfNotCanceled(log logr.Logger, err error, msg string, keysAndValues ...interface{}) {
	if err != nil && !IsContextCancellation(err) {
		log.Error(err, msg, keysAndValues...)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
