package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger so call sites don't depend on the handler choice.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing JSON in production and text otherwise.
func New(env string) *Logger {
	var handler slog.Handler

	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	return &Logger{slog.New(handler)}
}

// With returns a logger with additional context fields attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *Logger {
	return &Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
}
