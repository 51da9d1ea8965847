package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jlorenzo681/documind/internal/queue"
	"github.com/jlorenzo681/documind/internal/shared/metrics"
	"github.com/jlorenzo681/documind/internal/shared/storage/object"
	"github.com/jlorenzo681/documind/internal/shared/telemetry"
	"github.com/jlorenzo681/documind/internal/state"
)

// DefaultConcurrency bounds in-process task execution when unset.
const DefaultConcurrency = 4

// Pipeline runs the agent graph over an initial state.
type Pipeline interface {
	Run(ctx context.Context, s state.AgentState) (state.AgentState, error)
}

// DocumentLocator resolves a document ID to the path agents read it from.
type DocumentLocator interface {
	Locate(ctx context.Context, documentID string) (string, error)
}

// SubmitRequest describes a new analysis.
type SubmitRequest struct {
	DocumentID string
	Tasks      []string
	Questions  []string
	Priority   string
}

// Options configures a Runner.
type Options struct {
	Concurrency int
	// Queue, when set, receives submitted tasks instead of local goroutines.
	Queue queue.Client
	// Reports, when set, receives a copy of each generated PDF.
	Reports object.ObjectStore
}

// Runner owns every task status transition.
type Runner struct {
	repo     Repo
	pipeline Pipeline
	docs     DocumentLocator
	queue    queue.Client
	reports  object.ObjectStore
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewRunner wires a runner.
func NewRunner(repo Repo, pipeline Pipeline, docs DocumentLocator, opts Options) *Runner {
	n := opts.Concurrency
	if n <= 0 {
		n = DefaultConcurrency
	}
	return &Runner{
		repo:     repo,
		pipeline: pipeline,
		docs:     docs,
		queue:    opts.Queue,
		reports:  opts.Reports,
		sem:      semaphore.NewWeighted(int64(n)),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ReportKey is the object-store key of a task's published report.
func ReportKey(taskID string) string {
	return "reports/" + taskID + ".pdf"
}

// Submit records a queued task and dispatches it without waiting for it to run.
func (r *Runner) Submit(ctx context.Context, req SubmitRequest) (Task, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return Task{}, fmt.Errorf("%w: document_id is required", ErrInvalidInput)
	}
	types, err := ParseTaskTypes(req.Tasks)
	if err != nil {
		return Task{}, err
	}
	priority, err := ParsePriority(req.Priority)
	if err != nil {
		return Task{}, err
	}
	if _, err := r.docs.Locate(ctx, req.DocumentID); err != nil {
		return Task{}, err
	}

	now := r.now()
	task := Task{
		ID:         uuid.NewString(),
		DocumentID: req.DocumentID,
		Tasks:      types,
		Questions:  nonEmpty(req.Questions),
		Priority:   priority,
		Status:     StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.repo.Create(ctx, task); err != nil {
		return Task{}, err
	}
	metrics.IncTaskStatus(string(StatusQueued))
	telemetry.Info("analysis.submitted", map[string]any{
		"request_id":  RequestIDFromContext(ctx),
		"task_id":     task.ID,
		"document_id": task.DocumentID,
		"tasks":       types,
		"questions":   len(task.Questions),
		"priority":    priority,
	})

	if r.queue != nil {
		if err := r.enqueue(ctx, task.ID); err != nil {
			r.finish(detach(ctx), task.ID, nil, err, now)
			return Task{}, err
		}
		return task, nil
	}

	r.wg.Add(1)
	go func(ctx context.Context, id string) {
		defer r.wg.Done()
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer r.sem.Release(1)
		if err := r.Execute(ctx, id); err != nil {
			telemetry.Error("analysis.execute_failed", map[string]any{
				"request_id": RequestIDFromContext(ctx),
				"task_id":    id,
				"error":      err.Error(),
			})
		}
	}(detach(ctx), task.ID)

	return task, nil
}

func (r *Runner) enqueue(ctx context.Context, id string) error {
	msg := queue.Message{
		TaskID:     id,
		RequestID:  RequestIDFromContext(ctx),
		EnqueuedAt: r.now().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if err := r.queue.Send(ctx, msg); err != nil {
		return fmt.Errorf("enqueue task %s: %w", id, err)
	}
	telemetry.Info("analysis.enqueued", map[string]any{
		"request_id": msg.RequestID,
		"task_id":    id,
	})
	return nil
}

var errSkip = errors.New("skip")

// Execute runs a queued task to a terminal status. Tasks that are already
// terminal, including cancelled ones, are skipped. Agent errors do not fail
// the task; only an error or panic escaping the pipeline does.
func (r *Runner) Execute(ctx context.Context, id string) error {
	startedAt := r.now()
	task, err := r.repo.Update(ctx, id, func(t *Task) error {
		if t.Status.IsTerminal() {
			return errSkip
		}
		t.Status = StatusProcessing
		t.StartedAt = &startedAt
		return nil
	})
	if errors.Is(err, errSkip) {
		telemetry.Info("analysis.skipped", map[string]any{
			"request_id": RequestIDFromContext(ctx),
			"task_id":    id,
			"status":     task.Status,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark task %s processing: %w", id, err)
	}
	metrics.IncTaskStatus(string(StatusProcessing))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"task_id":           id,
		"document_id":       task.DocumentID,
		"status":            StatusProcessing,
		"status_transition": "queued->processing",
	})

	final, runErr := r.run(ctx, task)
	if runErr == nil {
		r.publishReport(ctx, id, final)
	}
	return r.finish(ctx, id, final, runErr, startedAt)
}

func (r *Runner) run(ctx context.Context, task Task) (final *state.AgentState, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	path, err := r.docs.Locate(ctx, task.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("document lookup id=%s: %w", task.DocumentID, err)
	}
	initial := state.New(task.DocumentID, path, task.ID, task.Questions)
	out, err := r.pipeline.Run(ctx, initial)
	return &out, err
}

// finish moves the task to its terminal status. A task cancelled while
// running keeps its cancelled status but still records the result.
func (r *Runner) finish(ctx context.Context, id string, final *state.AgentState, runErr error, startedAt time.Time) error {
	completedAt := r.now()
	task, err := r.repo.Update(context.WithoutCancel(ctx), id, func(t *Task) error {
		t.CompletedAt = &completedAt
		if final != nil {
			t.Result = final
		}
		switch {
		case t.Status == StatusCancelled:
		case runErr != nil:
			t.Status = StatusFailed
			t.Error = runErr.Error()
		default:
			t.Status = StatusCompleted
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("finish task %s: %w", id, err)
	}

	metrics.IncTaskStatus(string(task.Status))
	metrics.ObserveTaskDuration(completedAt.Sub(startedAt))
	fields := map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"task_id":           id,
		"document_id":       task.DocumentID,
		"status":            task.Status,
		"status_transition": "processing->" + string(task.Status),
		"duration_ms":       completedAt.Sub(startedAt).Milliseconds(),
	}
	if final != nil {
		fields["agent_errors"] = final.Errors.Len()
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
		telemetry.Error("analysis.status", fields)
		return nil
	}
	telemetry.Info("analysis.status", fields)
	return nil
}

func (r *Runner) publishReport(ctx context.Context, id string, final *state.AgentState) {
	if r.reports == nil || final == nil || final.FinalReportPath == "" {
		return
	}
	f, err := os.Open(final.FinalReportPath)
	if err != nil {
		telemetry.Warn("analysis.report_publish_failed", map[string]any{"task_id": id, "error": err.Error()})
		return
	}
	defer f.Close()
	if _, err := r.reports.SaveWithKey(ctx, ReportKey(id), "application/pdf", f); err != nil {
		telemetry.Warn("analysis.report_publish_failed", map[string]any{"task_id": id, "error": err.Error()})
	}
}

// Status returns the current task record.
func (r *Runner) Status(ctx context.Context, id string) (Task, error) {
	return r.repo.Get(ctx, id)
}

// Cancel marks a non-terminal task cancelled. A running pipeline is not
// interrupted; its result is stored when it finishes. The returned task
// carries the current status even when ErrTerminal is returned.
func (r *Runner) Cancel(ctx context.Context, id string) (Task, error) {
	task, err := r.repo.Update(ctx, id, func(t *Task) error {
		if t.Status.IsTerminal() {
			return ErrTerminal
		}
		t.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return task, err
	}
	metrics.IncTaskStatus(string(StatusCancelled))
	telemetry.Info("analysis.status", map[string]any{
		"request_id": RequestIDFromContext(ctx),
		"task_id":    id,
		"status":     StatusCancelled,
	})
	return task, nil
}

// OpenReport returns the task's PDF, preferring the local file and falling
// back to the published copy.
func (r *Runner) OpenReport(ctx context.Context, task Task) (io.ReadCloser, error) {
	if task.Result != nil && task.Result.FinalReportPath != "" {
		f, err := os.Open(task.Result.FinalReportPath)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if r.reports == nil {
		return nil, object.ErrNotFound
	}
	return r.reports.Open(ctx, ReportKey(task.ID))
}

// Wait blocks until in-process executions have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
