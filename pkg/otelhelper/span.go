package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetError marks span as failed and tags it with the dispatch error code.
func SetError(span trace.Span, err error, code string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if code != "" {
		span.SetAttributes(attribute.String(ErrorCodeKey, code))
	}
}
