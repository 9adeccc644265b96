package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters (lumberjack semantics).
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the daemon log destination. An empty Path logs to stderr
// only. Rotation parameters follow lumberjack semantics.
type Config struct {
	Path       string // log file; empty disables file logging
	Level      string // debug, info, warn, error (default info)
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // gzip rotated files
	Color      bool   // colorize levels on the text handler
}

// Writer returns the rotating file writer for the configured path, or nil
// when file logging is disabled.
func (c Config) Writer() io.WriteCloser {
	if c.Path == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   c.Path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// New builds a slog.Logger per the config: stderr text output, optionally
// teed into a rotating file.
func (c Config) New() *slog.Logger {
	var w io.Writer = os.Stderr
	if fw := c.Writer(); fw != nil {
		w = io.MultiWriter(os.Stderr, fw)
	}
	opts := &slog.HandlerOptions{Level: c.level()}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if c.Color {
		h = &colorHandler{Handler: h}
	}
	return slog.New(h)
}

func (c Config) level() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// colorHandler prefixes messages with an ANSI-colored level tag.
type colorHandler struct {
	slog.Handler
}

func (h *colorHandler) Handle(ctx context.Context, r slog.Record) error {
	var code string
	switch r.Level {
	case slog.LevelDebug:
		code = "\033[36m" // cyan
	case slog.LevelWarn:
		code = "\033[33m" // yellow
	case slog.LevelError:
		code = "\033[31m" // red
	default:
		code = "\033[32m" // green
	}
	r.Message = code + r.Level.String() + "\033[0m  " + r.Message
	return h.Handler.Handle(ctx, r)
}
