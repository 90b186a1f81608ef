// Package logger builds the process-wide hclog logger from configuration.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Options mirrors the logging section of the configuration file.
type Options struct {
	Level    string
	Format   string // "json" or "text"
	Output   string // "stdout", "stderr" or "file"
	FilePath string
	Colors   bool
}

var (
	defaultMu     sync.RWMutex
	defaultLogger hclog.Logger = hclog.New(&hclog.LoggerOptions{
		Name:  "upnpcds",
		Level: hclog.Info,
	})
)

// New creates a root logger. The returned closer releases the log file when
// output is "file" and is a no-op otherwise.
func New(name string, opts Options) (hclog.Logger, io.Closer, error) {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)

	switch opts.Output {
	case "", "stdout":
	case "stderr":
		out = os.Stderr
	case "file":
		if opts.FilePath == "" {
			return nil, nil, fmt.Errorf("logging output is file but no file_path is set")
		}
		f, err := os.OpenFile(opts.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closer = f
	default:
		return nil, nil, fmt.Errorf("unsupported log output: %s", opts.Output)
	}

	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	color := hclog.ColorOff
	if opts.Colors && opts.Format != "json" && opts.Output != "file" {
		color = hclog.AutoColor
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     out,
		JSONFormat: opts.Format == "json",
		Color:      color,
	})

	return logger, closer, nil
}

// Default returns the process-wide logger.
func Default() hclog.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l hclog.Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// OrDefault returns l, or the process-wide logger when l is nil.
func OrDefault(l hclog.Logger) hclog.Logger {
	if l != nil {
		return l
	}
	return Default()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
