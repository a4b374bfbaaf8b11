// Package logging builds the JSON structured logger every binary uses.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// New returns a JSON logger tagged with the service name. LOG_LEVEL selects
// debug, info (default), warn or error. The logger also becomes the slog
// default, so plain log.Printf output is JSON too.
func New(service string) *slog.Logger {
	l := NewWithWriter(os.Stdout, service, os.Getenv("LOG_LEVEL"))
	slog.SetDefault(l)
	return l
}

// NewWithWriter is New with an explicit destination and level.
func NewWithWriter(w io.Writer, service, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(h).With("service", service)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
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

// Step logs the outcome of one workflow step with its duration.
func Step(log *slog.Logger, step string, started time.Time, err error, attrs ...any) {
	attrs = append(attrs,
		"step", step,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	if err != nil {
		log.Warn("step failed", append(attrs, "status", "failed", "error", err.Error())...)
		return
	}
	log.Debug("step done", append(attrs, "status", "ok")...)
}
