package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"catchup-relay/internal/handler/http/requestid"
)

// NewLogger returns a JSON logger writing to stdout. The minimum level
// comes from LOG_LEVEL; see LevelFromEnv.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, handlerOptions()))
}

// NewTextLogger returns a human-readable logger writing to stdout, for
// local development. Same LOG_LEVEL handling as NewLogger.
func NewTextLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOptions()))
}

// LevelFromEnv reads LOG_LEVEL and maps it to a slog.Level. Accepted values
// are debug, info, warn (or warning) and error, case-insensitive. Empty or
// unrecognized values mean info.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions() *slog.HandlerOptions {
	level := LevelFromEnv()
	return &slog.HandlerOptions{
		Level: level,
		// Source locations stay on while warnings pass the filter, so
		// error and warning sites remain locatable in production logs.
		AddSource: level <= slog.LevelWarn,
	}
}

// WithRequestID returns a logger carrying the request ID from ctx as a
// request_id attribute. When the context has no request ID the logger is
// returned unchanged.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}

// WithFields returns a logger with each map entry attached as an attribute.
func WithFields(logger *slog.Logger, fields map[string]any) *slog.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

// FromContext returns the logger stored in ctx by WithLogger, or
// slog.Default when none is stored.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger stores a logger in the context for FromContext to retrieve.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

type contextKey string

const loggerContextKey contextKey = "logger"
