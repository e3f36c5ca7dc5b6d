package config

import (
	"log/slog"
	"os"
)

// SlogLevel maps the 0..3 LogLevel onto log/slog's level scale: 0 error,
// 1 warn, 2 info, 3 debug.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case 0:
		return slog.LevelError
	case 1:
		return slog.LevelWarn
	case 3:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process-wide structured logger for this
// configuration, JSON-encoded to stdout as in the rest of this codebase's
// entry points.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     c.SlogLevel(),
		AddSource: c.LogLevel >= 3,
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
