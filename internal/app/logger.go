package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the application logger. JSON output is intended for
// production log shipping; the text handler carries source locations for
// local debugging.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
}
