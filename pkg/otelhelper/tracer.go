// Package otelhelper wires OpenTelemetry tracing for trigger dispatch.
package otelhelper

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	TriggerIdentifierKey = "herald.trigger.identifier"
	AddressingTypeKey    = "herald.trigger.addressing"
	RequestIDKey         = "herald.request.id"
	TransactionIDKey     = "herald.transaction.id"
	OrganizationIDKey    = "herald.organization.id"
	EnvironmentIDKey     = "herald.environment.id"
	WorkflowIDKey        = "herald.workflow.id"
	DispatchStatusKey    = "herald.dispatch.status"
	ErrorCodeKey         = "herald.error.code"
	BulkSizeKey          = "herald.bulk.size"
)

// TracerConfig configures the OTLP tracer. The exporter endpoint comes from the
// standard OTEL_EXPORTER_OTLP_* environment variables.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	// SampleRatio is the fraction of root spans kept. Values outside (0, 1) keep every span.
	SampleRatio float64
}

// NewTracer installs a global OTLP tracer provider and returns a tracer and its shutdown func.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, config TracerConfig) (trace.Tracer, func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	provider, err := NewTracerProvider(ctx, config, sdktrace.WithBatcher(exporter))
	if err != nil {
		return nil, nil, err
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Tracer(config.ServiceName), provider.Shutdown, nil
}

// NewTracerProvider builds a provider with the service resource and sampler of config.
func NewTracerProvider(
	ctx context.Context,
	config TracerConfig,
	options ...sdktrace.TracerProviderOption,
) (*sdktrace.TracerProvider, error) {
	attributes := []attribute.KeyValue{semconv.ServiceName(config.ServiceName)}
	if config.ServiceVersion != "" {
		attributes = append(attributes, semconv.ServiceVersion(config.ServiceVersion))
	}

	r, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attributes...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	options = append(options,
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sampler(config.SampleRatio)),
	)

	return sdktrace.NewTracerProvider(options...), nil
}

// NoopTracer returns a tracer that records nothing.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("herald")
}

// nolint:ireturn
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}

	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
