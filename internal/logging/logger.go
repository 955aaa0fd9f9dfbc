// Package logging is the process-wide structured logging setup: slog with
// file rotation, per-component sub-loggers, and an in-memory ring buffer of
// recent output for crash dumps.
package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component constants for structured logging.
const (
	CompOSC      = "osc"
	CompGraphics = "graphics"
	CompDispatch = "dispatch"
	CompStream   = "stream"
	CompConfig   = "config"
	CompHistory  = "history"
	CompDebug    = "debug"
)

// Config holds logging configuration.
type Config struct {
	// Dir is the directory for log files. Empty means discard.
	Dir string

	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string

	// Format is "text" (default) or "json".
	Format string

	// MaxSizeMB is the max size in MB before rotation (default: 10).
	MaxSizeMB int

	// MaxBackups is rotated files to keep (default: 3).
	MaxBackups int

	// MaxAgeDays is days to keep rotated files (default: 14).
	MaxAgeDays int

	// RingSize is the in-memory ring buffer size in bytes (default: 1MB).
	RingSize int
}

var (
	globalMu     sync.RWMutex
	globalLogger *slog.Logger
	globalRing   *Ring
	rotator      *lumberjack.Logger
)

// Init sets up the global logger. Without a log directory everything still
// flows into the ring buffer but nothing touches disk; writing to stderr is
// never an option for a terminal emulator since it would corrupt the screen
// the emulator is drawing.
func Init(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 14
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 1 << 20
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	globalRing = NewRing(cfg.RingSize)

	var w io.Writer = globalRing
	if cfg.Dir != "" {
		rotator = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "termina.log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(rotator, globalRing)
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		globalLogger = slog.New(slog.NewJSONHandler(w, opts))
	} else {
		globalLogger = slog.New(slog.NewTextHandler(w, opts))
	}
}

// Logger returns the global logger. Safe to call before Init.
func Logger() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return globalLogger
}

// ForComponent returns a sub-logger with the component field set. The
// returned logger resolves the real handler at log time, so package-level
// loggers created before Init still end up writing to the configured sink.
func ForComponent(name string) *slog.Logger {
	return slog.New(&lateHandler{component: name})
}

// DumpRing writes the ring buffer contents to w, oldest first.
func DumpRing(w io.Writer) error {
	globalMu.RLock()
	ring := globalRing
	globalMu.RUnlock()
	if ring == nil {
		return nil
	}
	_, err := w.Write(ring.Snapshot())
	return err
}

// Shutdown closes the rotating writer.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	globalLogger = nil
	globalRing = nil
}

// lateHandler delegates to the current global handler at log time instead
// of binding it at construction time.
type lateHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *lateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *lateHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *lateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &lateHandler{component: h.component, attrs: merged, group: h.group}
}

func (h *lateHandler) WithGroup(name string) slog.Handler {
	return &lateHandler{component: h.component, attrs: h.attrs, group: name}
}
