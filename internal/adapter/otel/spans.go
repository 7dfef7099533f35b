package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tenantgate"

// StartResolveSpan starts a span for a hostname resolution.
func StartResolveSpan(ctx context.Context, hostname string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "resolve",
		trace.WithAttributes(attribute.String("tenantgate.hostname", hostname)),
	)
}

// StartProvisionSpan starts a span for tenant provisioning.
func StartProvisionSpan(ctx context.Context, slug string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "provision",
		trace.WithAttributes(attribute.String("tenantgate.slug", slug)),
	)
}

// StartInvalidateSpan starts a span for a cache invalidation.
func StartInvalidateSpan(ctx context.Context, tenantID string, hostnames int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "invalidate",
		trace.WithAttributes(
			attribute.String("tenantgate.tenant_id", tenantID),
			attribute.Int("tenantgate.hostnames", hostnames),
		),
	)
}
