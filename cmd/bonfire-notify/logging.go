package main

import (
	"log/slog"
	"os"
)

// setupLogging builds the process logger. Unknown levels and formats fall
// back to info and json.
func setupLogging(level, format string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	}

	return slog.New(handler)
}
