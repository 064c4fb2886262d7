package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps LOG_LEVEL values to a slog level. Unknown values mean
// errors only, which keeps the chat screen clean.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// New returns a text logger writing to w at level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Init installs the default logger. It writes to stderr, or appends to
// WARPCHAT_LOG_FILE when set so debug output does not draw over the chat.
func Init() {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))

	var w io.Writer = os.Stderr
	if path := os.Getenv("WARPCHAT_LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err == nil {
			w = f
		}
	}

	slog.SetDefault(New(w, level))
}
