// Package logger provides structured logging using log/slog. It sets up a
// JSON handler with service-level context and carries a per-evaluation trace
// ID through context.Context so that executor, filter, and source logs for
// one tick can be correlated.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Default logger too, so bare slog.Info() is structured as well
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
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

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateTraceID creates a trace ID for one evaluation of a market.
// Format: "{exchange}:{symbol}:{period}-{unixNano}".
func GenerateTraceID(exchange, symbol, period string, ts time.Time) string {
	return fmt.Sprintf("%s:%s:%s-%d", exchange, symbol, period, ts.UnixNano())
}

// Attrs returns slog attributes including the trace ID from context.
// Usage: logger.Info("msg", logger.Attrs(ctx)...)
func Attrs(ctx context.Context) []any {
	tid := TraceID(ctx)
	if tid == "" {
		return nil
	}
	return []any{slog.String("trace_id", tid)}
}
