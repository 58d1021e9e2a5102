package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey int

const (
	traceIDKey contextKey = iota
	offeringKey
)

type offeringScope struct {
	id       string
	exchange string
}

// WithTraceID returns a context carrying traceID. Loggers built by this
// package add it to every record logged with that context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace id stored in ctx, or "".
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// GenerateTraceID returns a new UUID v4 trace id.
func GenerateTraceID() string {
	return uuid.New().String()
}

// ContextWithTraceID returns a context carrying a fresh trace id.
func ContextWithTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, GenerateTraceID())
}

// EnsureTraceID keeps an existing trace id and adds one otherwise.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return ContextWithTraceID(ctx)
}

// WithOffering scopes ctx to one offering. Records logged with the
// returned context carry offering_id and exchange.
func WithOffering(ctx context.Context, offeringID, exchange string) context.Context {
	return context.WithValue(ctx, offeringKey, offeringScope{id: offeringID, exchange: exchange})
}

func offeringFrom(ctx context.Context) (offeringScope, bool) {
	if ctx == nil {
		return offeringScope{}, false
	}
	s, ok := ctx.Value(offeringKey).(offeringScope)
	return s, ok
}

// WithComponent tags logger with a component name.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = GetLogger()
	}
	return logger.With(slog.String("component", component))
}
