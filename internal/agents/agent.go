// Package agents holds the pipeline stages that transform an AgentState.
// Agents never return errors: failures are appended to the state's Errors log.
package agents

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jlorenzo681/documind/internal/shared/metrics"
	"github.com/jlorenzo681/documind/internal/shared/telemetry"
	"github.com/jlorenzo681/documind/internal/state"
)

// Agent names used in traces, errors, metrics and graph nodes.
const (
	NameParser     = "parser"
	NameSummarizer = "summarizer"
	NameQA         = "qa"
	NameCompliance = "compliance"
	NameReporter   = "reporter"
)

// Agent is a single pipeline stage.
type Agent interface {
	Name() string
	Execute(ctx context.Context, s state.AgentState) state.AgentState
}

// DocumentSource opens the bytes behind AgentState.DocumentPath.
type DocumentSource interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

var now = time.Now

// trace appends "[ts] name: msg".
func trace(s state.AgentState, name, msg string) state.AgentState {
	return s.WithTrace(fmt.Sprintf("[%s] %s: %s", now().UTC().Format(time.RFC3339), name, msg))
}

// fail appends "name: msg" to Errors and logs it.
func fail(s state.AgentState, name, msg string) state.AgentState {
	telemetry.Error("agent.error", map[string]any{
		"agent":       name,
		"task_id":     s.TaskID,
		"document_id": s.DocumentID,
		"error":       msg,
	})
	return s.WithError(name + ": " + msg)
}

// observe wraps one execution with the active gauge, outcome counter and a
// completion log line. The outcome is "error" when the run appended errors.
func observe(ctx context.Context, name string, in state.AgentState, run func(context.Context, state.AgentState) state.AgentState) state.AgentState {
	start := time.Now()
	metrics.AgentStarted(name)
	out := run(ctx, in)
	elapsed := time.Since(start)

	status := "success"
	if out.Errors.Len() > in.Errors.Len() {
		status = "error"
	}
	metrics.AgentFinished(name, status, elapsed)
	telemetry.Info("agent.complete", map[string]any{
		"agent":       name,
		"status":      status,
		"task_id":     in.TaskID,
		"document_id": in.DocumentID,
		"duration_ms": elapsed.Milliseconds(),
	})
	return out
}
