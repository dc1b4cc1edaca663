// Package logging sets up the run log: a timestamped, size-rotated file that
// keeps every debug line, and a console stream for the operator.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the log sinks.
type Config struct {
	Level      string `yaml:"level"`       // console level: debug, info, warn, error
	Format     string `yaml:"format"`      // console format: text, json
	Dir        string `yaml:"dir"`         // log file directory, empty disables the file
	Prefix     string `yaml:"prefix"`      // log file name prefix
	MaxSizeMB  int    `yaml:"max_size_mb"` // rotate after this many megabytes
	MaxBackups int    `yaml:"max_backups"` // rotated files to keep
}

// DefaultConfig returns the configuration used on the lab instrument.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		Dir:        "logs",
		Prefix:     "asp",
		MaxSizeMB:  1,
		MaxBackups: 1,
	}
}

// Logger is a slog.Logger that also owns the rotating log file.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
}

// New creates a logger writing to console and, when cfg.Dir is set, to
// <dir>/<prefix>_<timestamp>.log at debug level.
func New(cfg Config, console io.Writer) (*Logger, error) {
	if console == nil {
		console = os.Stdout
	}

	handlers := []slog.Handler{
		newHandler(console, cfg.Format, parseLevel(cfg.Level)),
	}

	var file *lumberjack.Logger
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = "run"
		}
		name := fmt.Sprintf("%s_%s.log", prefix, time.Now().Format("2006-01-02_15-04-05"))
		file = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, name),
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: cfg.MaxBackups,
		}
		handlers = append(handlers, newHandler(file, "text", slog.LevelDebug))
	}

	return &Logger{
		Logger: slog.New(fanout(handlers)),
		file:   file,
	}, nil
}

// Path returns the log file path, or "" when file logging is disabled.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Filename
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
