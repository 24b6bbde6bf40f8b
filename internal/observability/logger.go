package observability

import (
	"io"
	"log/slog"
	"strings"
)

// NewCLILogger builds a logger for command-line tools that writes to w, so
// diagnostics stay off stdout when stdout carries output records. It does not
// replace the slog default. Services use the shared observability.NewLogger.
func NewCLILogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
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
