package tasks

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jlorenzo681/documind/internal/shared/storage/object"
	"github.com/jlorenzo681/documind/internal/shared/telemetry"
)

// DocumentPurger removes documents uploaded before cutoff.
type DocumentPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper evicts expired tasks and documents on an interval.
type Sweeper struct {
	Tasks     Repo
	Documents DocumentPurger
	Reports   object.ObjectStore
	// TaskTTL of zero keeps finished tasks forever.
	TaskTTL time.Duration
	// DocumentTTL of zero keeps documents forever.
	DocumentTTL time.Duration
	Interval    time.Duration

	now func() time.Time
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			telemetry.Warn("retention.sweep_failed", map[string]any{"error": err.Error()})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce performs a single eviction pass and reports how many tasks and
// documents were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (tasksRemoved, docsRemoved int, err error) {
	now := time.Now().UTC()
	if s.now != nil {
		now = s.now()
	}

	if s.TaskTTL > 0 && s.Tasks != nil {
		removed, err := s.Tasks.DeleteTerminalBefore(ctx, now.Add(-s.TaskTTL))
		if err != nil {
			return 0, 0, err
		}
		for _, t := range removed {
			s.dropReport(ctx, t)
		}
		tasksRemoved = len(removed)
	}

	if s.DocumentTTL > 0 && s.Documents != nil {
		docsRemoved, err = s.Documents.PurgeBefore(ctx, now.Add(-s.DocumentTTL))
		if err != nil {
			return tasksRemoved, 0, err
		}
	}

	if tasksRemoved > 0 || docsRemoved > 0 {
		telemetry.Info("retention.swept", map[string]any{
			"tasks_removed":     tasksRemoved,
			"documents_removed": docsRemoved,
		})
	}
	return tasksRemoved, docsRemoved, nil
}

func (s *Sweeper) dropReport(ctx context.Context, t Task) {
	if t.Result != nil && t.Result.FinalReportPath != "" {
		if err := os.Remove(t.Result.FinalReportPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			telemetry.Warn("retention.report_remove_failed", map[string]any{"task_id": t.ID, "error": err.Error()})
		}
	}
	if s.Reports != nil {
		if err := s.Reports.Delete(ctx, ReportKey(t.ID)); err != nil {
			telemetry.Warn("retention.report_remove_failed", map[string]any{"task_id": t.ID, "error": err.Error()})
		}
	}
}
