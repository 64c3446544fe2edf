// Package logging configures the process-wide slog logger and hands out
// component-tagged loggers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

var level = new(slog.LevelVar)

// Init installs the global slog handler. Call once at startup.
// levelStr is one of "debug", "info", "warn", "error" (default "info");
// format is "text" or "json" (default "text").
func Init(levelStr, format string) {
	InitWriter(os.Stderr, levelStr, format)
}

// InitWriter is Init with an explicit destination, for tools that log to a
// file instead of stderr.
func InitWriter(w io.Writer, levelStr, format string) {
	level.Set(ParseLevel(levelStr))
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// SetLevel changes the log level at runtime.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// For returns a logger tagged with a component name. The logger delegates
// to slog.Default() at call time, so package-level loggers pick up handler
// swaps (Init after package init, CaptureForTest) without re-creation.
func For(component string) *slog.Logger {
	return slog.New(componentHandler{component: component})
}

type componentHandler struct {
	component string
}

func (h componentHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return slog.Default().Handler().Enabled(ctx, l)
}

func (h componentHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(slog.String("component", h.component))
	return slog.Default().Handler().Handle(ctx, r)
}

func (h componentHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h componentHandler) WithGroup(string) slog.Handler { return h }
