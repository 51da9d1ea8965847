package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	mu   sync.Mutex
	task Task
}

// MemoryRepo stores tasks in memory. The map lock is held only for lookups;
// each task has its own lock so updates to different tasks never contend.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		entries: make(map[string]*memoryEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new task.
func (r *MemoryRepo) Create(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[t.ID] = &memoryEntry{task: t.clone()}
	return nil
}

// Get returns a copy of the task.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	e, ok := r.entry(id)
	if !ok {
		return Task{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.clone(), nil
}

// Update applies fn under the task's lock.
func (r *MemoryRepo) Update(ctx context.Context, id string, fn func(*Task) error) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	e, ok := r.entry(id)
	if !ok {
		return Task{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.task.clone()
	if err := fn(&next); err != nil {
		return e.task.clone(), err
	}
	next.ID = e.task.ID
	next.UpdatedAt = r.now()
	e.task = next
	return next.clone(), nil
}

// ListByStatus returns tasks in any of statuses, oldest first.
func (r *MemoryRepo) ListByStatus(ctx context.Context, statuses ...Status) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []Task
	for _, e := range r.snapshot() {
		e.mu.Lock()
		if want[e.task.Status] {
			out = append(out, e.task.clone())
		}
		e.mu.Unlock()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteTerminalBefore evicts finished tasks last updated before cutoff.
func (r *MemoryRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []Task
	for id, e := range r.entries {
		e.mu.Lock()
		if e.task.Status.IsTerminal() && e.task.UpdatedAt.Before(cutoff) {
			removed = append(removed, e.task.clone())
			delete(r.entries, id)
		}
		e.mu.Unlock()
	}
	return removed, nil
}

func (r *MemoryRepo) entry(id string) (*memoryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *MemoryRepo) snapshot() []*memoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*memoryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
