// Package logger builds the process-wide slog logger. Every module logs
// named events ("webhook_delivered", "ledger_purge_completed") through it,
// so the output stays machine-greppable.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a structured JSON logger on stdout. The level comes from
// LOG_LEVEL (debug, info, warn, error); anything unset or unknown means info.
func New() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
