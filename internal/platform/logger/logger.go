package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Services take a *slog.Logger so tests can
// swap in a silent one.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
