package internal

import (
	"io"
	"log/slog"
)

// NewLogger writes text in development and JSON elsewhere. Unknown levels
// fall back to info.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug && env != "development",
	}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if env == "development" {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", "storefinder")
}
