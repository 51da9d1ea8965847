package tasks

import (
	"context"
	"time"
)

// Repo persists tasks. Update is an atomic read-modify-write per task: fn sees
// the current record and its changes are stored only when it returns nil.
// When fn fails, Update returns the unmodified task together with fn's error.
type Repo interface {
	Create(ctx context.Context, t Task) error
	Get(ctx context.Context, id string) (Task, error)
	Update(ctx context.Context, id string, fn func(*Task) error) (Task, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]Task, error)
	// DeleteTerminalBefore removes terminal tasks last updated before cutoff
	// and returns them so callers can release their artifacts.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]Task, error)
}
