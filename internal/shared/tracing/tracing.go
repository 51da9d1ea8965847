// Package tracing configures the OpenTelemetry tracer provider. Finished spans
// are written to the structured log; there is no remote collector.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jlorenzo681/documind/internal/shared/telemetry"
)

const instrumentationName = "github.com/jlorenzo681/documind"

// Provider owns the tracer provider for the process.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup installs a global tracer provider. When disabled the provider is a
// no-op and Shutdown does nothing.
func Setup(service string, enabled bool) *Provider {
	if !enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{}
	}
	res := sdkresource.NewSchemaless(attribute.String("service.name", service))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(LogExporter{}),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}
}

// Tracer returns the documind tracer from the global provider.
func (p *Provider) Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// LogExporter writes each finished span as a "trace.span" log line.
type LogExporter struct{}

func (LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := map[string]any{
			"trace_id":    s.SpanContext().TraceID().String(),
			"span_id":     s.SpanContext().SpanID().String(),
			"name":        s.Name(),
			"duration_ms": s.EndTime().Sub(s.StartTime()).Milliseconds(),
			"status":      s.Status().Code.String(),
		}
		if s.Parent().IsValid() {
			fields["parent_span_id"] = s.Parent().SpanID().String()
		}
		for _, kv := range s.Attributes() {
			fields[string(kv.Key)] = kv.Value.AsInterface()
		}
		telemetry.Debug("trace.span", fields)
	}
	return nil
}

func (LogExporter) Shutdown(context.Context) error { return nil }
