package llm

import (
	"context"
	"time"

	"github.com/jlorenzo681/documind/internal/shared/metrics"
	"github.com/jlorenzo681/documind/internal/shared/telemetry"
)

type instrumented struct {
	next     Client
	provider string
}

// Instrument wraps c so every call is counted, timed and logged.
func Instrument(c Client, provider string) Client {
	if c == nil {
		return nil
	}
	return &instrumented{next: c, provider: provider}
}

func (i *instrumented) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := i.next.Complete(ctx, req)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	model := resp.Model
	if model == "" {
		model = "unknown"
	}
	metrics.ObserveLLMCall(i.provider, model, status, elapsed, resp.TotalTokens)

	fields := map[string]any{
		"provider":    i.provider,
		"model":       model,
		"complexity":  string(req.Complexity),
		"json":        req.JSON,
		"tokens":      resp.TotalTokens,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Warn("llm.call", fields)
	} else {
		telemetry.Debug("llm.call", fields)
	}
	return resp, err
}

func (i *instrumented) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	start := time.Now()
	out, err := i.next.Embed(ctx, texts)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveLLMCall(i.provider, "embedding", status, time.Since(start), 0)
	return out, err
}
