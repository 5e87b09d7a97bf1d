package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NoopExporter drops all spans. Used when no collector is configured so the
// rest of the service can call StartSpan unconditionally.
type NoopExporter struct{}

func (e *NoopExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (e *NoopExporter) Shutdown(ctx context.Context) error {
	return nil
}

// InitProvider installs a tracer provider backed by the given exporter and
// registers the service tracer. Returns the provider so callers can Shutdown.
func InitProvider(exporter sdktrace.SpanExporter, serviceName string) *sdktrace.TracerProvider {
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	SetTracer(provider.Tracer(serviceName))
	return provider
}
