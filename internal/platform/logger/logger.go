package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Services and handlers take
// it as a dependency instead of reaching for a global.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
