package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jlorenzo681/documind/internal/shared/telemetry"
)

// Event describes one step of a run.
type Event struct {
	RunID  string
	Step   int
	NodeID string
	Msg    string
	Meta   map[string]any
}

// Emitter receives run events. Emit must not block or panic.
type Emitter interface {
	Emit(Event)
}

// NullEmitter drops every event.
type NullEmitter struct{}

func (NullEmitter) Emit(Event) {}

// Emitters fans an event out to each emitter in order.
type Emitters []Emitter

func (m Emitters) Emit(e Event) {
	for _, em := range m {
		em.Emit(e)
	}
}

// LogEmitter writes events as structured log lines named "workflow.<msg>".
type LogEmitter struct{}

func (LogEmitter) Emit(e Event) {
	fields := map[string]any{
		"run_id": e.RunID,
		"step":   e.Step,
	}
	if e.NodeID != "" {
		fields["node"] = e.NodeID
	}
	for k, v := range e.Meta {
		fields[k] = v
	}
	if e.Msg == "run_error" {
		telemetry.Error("workflow."+e.Msg, fields)
		return
	}
	telemetry.Info("workflow."+e.Msg, fields)
}

// OTelEmitter records each event as a span. Node spans are back-dated by
// their duration_ms so the trace shows real node timing.
type OTelEmitter struct {
	Tracer trace.Tracer
}

func (o OTelEmitter) Emit(e Event) {
	if o.Tracer == nil {
		return
	}
	name := e.Msg
	if e.NodeID != "" {
		name = e.NodeID + "." + e.Msg
	}

	end := time.Now()
	start := end
	if ms, ok := e.Meta["duration_ms"].(int64); ok {
		start = end.Add(-time.Duration(ms) * time.Millisecond)
	}

	_, span := o.Tracer.Start(context.Background(), name, trace.WithTimestamp(start))
	span.SetAttributes(
		attribute.String("documind.run_id", e.RunID),
		attribute.Int("documind.step", e.Step),
		attribute.String("documind.node", e.NodeID),
	)
	for k, v := range e.Meta {
		span.SetAttributes(toAttribute(k, v))
	}
	if msg, ok := e.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
		span.RecordError(fmt.Errorf("%s", msg))
	}
	span.End(trace.WithTimestamp(end))
}

func toAttribute(k string, v any) attribute.KeyValue {
	switch t := v.(type) {
	case string:
		return attribute.String(k, t)
	case int:
		return attribute.Int(k, t)
	case int64:
		return attribute.Int64(k, t)
	case float64:
		return attribute.Float64(k, t)
	case bool:
		return attribute.Bool(k, t)
	default:
		return attribute.String(k, fmt.Sprint(t))
	}
}
