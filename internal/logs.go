package internal

import (
	"log/slog"
	"os"
	"strings"
)

// LoggerFromString builds a text slog logger from a level name.
// Unknown names fall back to INFO so a typo in LOG_LEVEL never
// silences the service.
func LoggerFromString(level string) *slog.Logger {
	return LoggerFromLevel(parseLevel(level))
}

func LoggerFromLevel(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
