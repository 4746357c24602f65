// Package tracing starts service spans on the global OpenTelemetry provider.
// With no provider installed the spans are no-ops.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/requestcontext"
)

// Start opens a span named "<component>.<operation>" tagged with the request id.
func Start(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, attribute.String("request_id", requestID))
	}
	return otel.Tracer("sahara/"+component).Start(ctx, component+"."+operation, trace.WithAttributes(attrs...))
}

// End records err on the span, tagged with its domain code, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		code := dErrors.CodeOf(err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.code", string(code)))
		span.SetStatus(codes.Error, string(code))
	}
	span.End()
}
