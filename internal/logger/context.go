package logger

import (
	"context"
	"log/slog"
)

type (
	requestIDKey struct{}
	tenantKey    struct{}
)

type tenantAttrs struct {
	slug      string
	partition string
}

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithTenant records the resolved tenant so that every log line written for
// the request carries it.
func WithTenant(ctx context.Context, slug, partition string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantAttrs{slug: slug, partition: partition})
}

// From returns the default logger enriched with the request ID and tenant
// stored in ctx.
func From(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := RequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	if t, ok := ctx.Value(tenantKey{}).(tenantAttrs); ok {
		l = l.With("tenant", t.slug, "partition", t.partition)
	}
	return l
}
