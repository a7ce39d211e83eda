// Package logging builds the application's charmbracelet/log loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

const LogFileName = ".starkdemo.log"

// New returns a logger writing to w. format is "text" (default), "json" or
// "logfmt".
func New(w io.Writer, level, format string) (*log.Logger, error) {
	lvl := log.InfoLevel
	if level != "" {
		var err error
		if lvl, err = log.ParseLevel(level); err != nil {
			return nil, err
		}
	}

	var f log.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		f = log.TextFormatter
	case "json":
		f = log.JSONFormatter
	case "logfmt":
		f = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "starkdemo",
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Formatter:       f,
	}), nil
}

// DefaultLogPath is ~/.starkdemo.log.
func DefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, LogFileName), nil
}

// OpenFile appends to path (DefaultLogPath when empty). It is used while the
// TUI owns the terminal.
func OpenFile(path, level string) (*log.Logger, io.Closer, error) {
	if path == "" {
		var err error
		if path, err = DefaultLogPath(); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger, err := New(f, level, "logfmt")
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return logger, f, nil
}

// Discard drops everything. Components built without a logger use it.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
