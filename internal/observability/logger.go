// Package observability provides the structured logger and Prometheus
// metrics shared by the detection pipeline.
package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog.Logger. format is "json" or "text",
// level one of debug/info/warn/error; anything unrecognized falls back to
// json at info so a typo in the environment never silences logging.
func NewLogger(level, format string) *slog.Logger {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lv}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
