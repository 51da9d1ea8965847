package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlorenzo681/documind/internal/queue"
	"github.com/jlorenzo681/documind/internal/state"
)

type pipelineFunc func(ctx context.Context, s state.AgentState) (state.AgentState, error)

func (f pipelineFunc) Run(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	return f(ctx, s)
}

type fakeDocs map[string]string

func (d fakeDocs) Locate(_ context.Context, id string) (string, error) {
	p, ok := d[id]
	if !ok {
		return "", errors.New("document not found")
	}
	return p, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (q *fakeQueue) Send(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func newTestRunner(p Pipeline, opts Options) (*Runner, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewRunner(repo, p, fakeDocs{"doc-1": "uploads/doc-1.pdf"}, opts), repo
}

func seedTask(t *testing.T, repo Repo, id string, status Status) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(context.Background(), Task{
		ID: id, DocumentID: "doc-1", Tasks: []TaskType{TypeFull},
		Priority: PriorityNormal, Status: status, CreatedAt: now,
	}))
}

func TestSubmitCompletesDespiteAgentErrors(t *testing.T) {
	var seen state.AgentState
	r, _ := newTestRunner(pipelineFunc(func(_ context.Context, s state.AgentState) (state.AgentState, error) {
		seen = s
		return s.WithError("qa: QA failed: boom"), nil
	}), Options{})

	task, err := r.Submit(context.Background(), SubmitRequest{
		DocumentID: "doc-1",
		Questions:  []string{"Who signs?", "  "},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, task.Status)
	assert.Equal(t, []TaskType{TypeFull}, task.Tasks)
	assert.Equal(t, PriorityNormal, task.Priority)

	r.Wait()

	got, err := r.Status(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, []string{"qa: QA failed: boom"}, got.Result.Errors.Entries())
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)

	assert.Equal(t, "uploads/doc-1.pdf", seen.DocumentPath)
	assert.Equal(t, task.ID, seen.TaskID)
	assert.Equal(t, []string{"Who signs?"}, seen.Questions)
}

func TestExecuteFailsWhenPipelineReturnsError(t *testing.T) {
	r, repo := newTestRunner(pipelineFunc(func(_ context.Context, s state.AgentState) (state.AgentState, error) {
		return s.WithTrace("parser: partial"), errors.New("workflow: exceeded max steps")
	}), Options{})
	seedTask(t, repo, "t-1", StatusQueued)

	require.NoError(t, r.Execute(context.Background(), "t-1"))

	got, err := repo.Get(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "workflow: exceeded max steps", got.Error)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1, got.Result.AgentTrace.Len())
}

func TestExecuteRecoversPanic(t *testing.T) {
	r, repo := newTestRunner(pipelineFunc(func(context.Context, state.AgentState) (state.AgentState, error) {
		panic("nil map")
	}), Options{})
	seedTask(t, repo, "t-1", StatusQueued)

	require.NoError(t, r.Execute(context.Background(), "t-1"))

	got, err := repo.Get(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "panic: nil map", got.Error)
}

func TestExecuteFailsOnUnknownDocument(t *testing.T) {
	called := false
	r, repo := newTestRunner(pipelineFunc(func(_ context.Context, s state.AgentState) (state.AgentState, error) {
		called = true
		return s, nil
	}), Options{})
	require.NoError(t, repo.Create(context.Background(), Task{ID: "t-1", DocumentID: "gone", Status: StatusQueued}))

	require.NoError(t, r.Execute(context.Background(), "t-1"))

	got, _ := repo.Get(context.Background(), "t-1")
	assert.False(t, called)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "document lookup id=gone")
}

func TestCancelledTaskIsNotExecuted(t *testing.T) {
	called := false
	r, repo := newTestRunner(pipelineFunc(func(_ context.Context, s state.AgentState) (state.AgentState, error) {
		called = true
		return s, nil
	}), Options{})
	seedTask(t, repo, "t-1", StatusQueued)

	task, err := r.Cancel(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, task.Status)

	require.NoError(t, r.Execute(context.Background(), "t-1"))
	assert.False(t, called)

	got, _ := repo.Get(context.Background(), "t-1")
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestCancelTerminalTask(t *testing.T) {
	r, repo := newTestRunner(pipelineFunc(func(_ context.Context, s state.AgentState) (state.AgentState, error) {
		return s, nil
	}), Options{})
	seedTask(t, repo, "t-1", StatusCompleted)

	task, err := r.Cancel(context.Background(), "t-1")
	require.ErrorIs(t, err, ErrTerminal)
	assert.Equal(t, StatusCompleted, task.Status)

	_, err = r.Cancel(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelDuringRunKeepsCancelledAndStoresResult(t *testing.T) {
	var r *Runner
	r, repo := newTestRunner(pipelineFunc(func(ctx context.Context, s state.AgentState) (state.AgentState, error) {
		_, err := r.Cancel(ctx, s.TaskID)
		require.NoError(t, err)
		return s.WithTrace("reporter: done"), nil
	}), Options{})
	seedTask(t, repo, "t-1", StatusQueued)

	require.NoError(t, r.Execute(context.Background(), "t-1"))

	got, _ := repo.Get(context.Background(), "t-1")
	assert.Equal(t, StatusCancelled, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, []string{"reporter: done"}, got.Result.AgentTrace.Entries())
	assert.NotNil(t, got.CompletedAt)
}

func TestSubmitEnqueuesWhenQueueConfigured(t *testing.T) {
	q := &fakeQueue{}
	called := false
	r, _ := newTestRunner(pipelineFunc(func(_ context.Context, s state.AgentState) (state.AgentState, error) {
		called = true
		return s, nil
	}), Options{Queue: q})

	ctx := WithRequestID(context.Background(), "req-9")
	task, err := r.Submit(ctx, SubmitRequest{DocumentID: "doc-1", Tasks: []string{"Summarize"}, Priority: "high"})
	require.NoError(t, err)
	r.Wait()

	assert.False(t, called)
	require.Len(t, q.msgs, 1)
	assert.Equal(t, task.ID, q.msgs[0].TaskID)
	assert.Equal(t, "req-9", q.msgs[0].RequestID)
	assert.Equal(t, queue.MessageVersion, q.msgs[0].Version)
	assert.Equal(t, []TaskType{TypeSummarize}, task.Tasks)
	assert.Equal(t, PriorityHigh, task.Priority)

	got, err := r.Status(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)
}

func TestSubmitEnqueueFailureMarksTaskFailed(t *testing.T) {
	r, repo := newTestRunner(pipelineFunc(func(_ context.Context, s state.AgentState) (state.AgentState, error) {
		return s, nil
	}), Options{Queue: &fakeQueue{err: errors.New("throttled")}})

	_, err := r.Submit(context.Background(), SubmitRequest{DocumentID: "doc-1"})
	require.Error(t, err)

	failed, err := repo.ListByStatus(context.Background(), StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "throttled")
}

func TestSubmitValidation(t *testing.T) {
	r, _ := newTestRunner(pipelineFunc(func(_ context.Context, s state.AgentState) (state.AgentState, error) {
		return s, nil
	}), Options{})

	_, err := r.Submit(context.Background(), SubmitRequest{})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Submit(context.Background(), SubmitRequest{DocumentID: "doc-1", Tasks: []string{"translate"}})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Submit(context.Background(), SubmitRequest{DocumentID: "doc-1", Priority: "urgent"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Submit(context.Background(), SubmitRequest{DocumentID: "nope"})
	require.Error(t, err)
}

func TestSubmitBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0
	r, _ := newTestRunner(pipelineFunc(func(_ context.Context, s state.AgentState) (state.AgentState, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return s, nil
	}), Options{Concurrency: 2})

	for i := 0; i < 6; i++ {
		_, err := r.Submit(context.Background(), SubmitRequest{DocumentID: "doc-1"})
		require.NoError(t, err)
	}
	r.Wait()

	assert.LessOrEqual(t, peak, 2)
	assert.GreaterOrEqual(t, peak, 1)
}

func TestEstimateSeconds(t *testing.T) {
	assert.Equal(t, 55, EstimateSeconds([]TaskType{TypeFull}))
	assert.Equal(t, 60, EstimateSeconds([]TaskType{TypeSummarize, TypeQA}))
	assert.Equal(t, 20, EstimateSeconds([]TaskType{"other"}))
	assert.Equal(t, 10, EstimateSeconds(nil))
}
