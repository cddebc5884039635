package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the process-wide default logger writing to stdout.
func Setup(level string, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter installs the default logger writing to w. The CLI uses it to
// keep log lines off stdout, which carries command output.
func SetupWriter(w io.Writer, level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if requestID := RequestID(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
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
