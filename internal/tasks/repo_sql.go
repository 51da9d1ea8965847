package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jlorenzo681/documind/internal/shared/storage/db"
	"github.com/jlorenzo681/documind/internal/state"
)

const taskColumns = `id, document_id, tasks, questions, priority, status, result, error,
       created_at, started_at, completed_at, updated_at`

// SQLRepo implements Repo on Postgres, MySQL or SQLite.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new task.
func (r *SQLRepo) Create(ctx context.Context, t Task) error {
	const query = `
INSERT INTO analysis_tasks (
	id, document_id, tasks, questions, priority, status, result, error,
	created_at, started_at, completed_at, updated_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	typesJSON, err := json.Marshal(t.Tasks)
	if err != nil {
		return err
	}
	questionsJSON, err := marshalQuestions(t.Questions)
	if err != nil {
		return err
	}
	result, err := marshalResult(t.Result)
	if err != nil {
		return err
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	_, err = r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		t.ID,
		t.DocumentID,
		string(typesJSON),
		questionsJSON,
		string(t.Priority),
		string(t.Status),
		result,
		t.Error,
		t.CreatedAt,
		nullTime(t.StartedAt),
		nullTime(t.CompletedAt),
		t.UpdatedAt,
	)
	return err
}

// Get returns a task by ID.
func (r *SQLRepo) Get(ctx context.Context, id string) (Task, error) {
	query := `SELECT ` + taskColumns + ` FROM analysis_tasks WHERE id = ?`
	t, err := scanTask(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// Update locks the row, applies fn and writes the mutable columns back.
func (r *SQLRepo) Update(ctx context.Context, id string, fn func(*Task) error) (Task, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer tx.Rollback()

	query := `SELECT ` + taskColumns + ` FROM analysis_tasks WHERE id = ?`
	if r.Dialect.SupportsForUpdate() {
		query += ` FOR UPDATE`
	}
	current, err := scanTask(tx.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}

	next := current.clone()
	if err := fn(&next); err != nil {
		return current, err
	}
	next.ID = current.ID
	next.UpdatedAt = time.Now().UTC()

	result, err := marshalResult(next.Result)
	if err != nil {
		return current, err
	}
	const update = `
UPDATE analysis_tasks
SET status = ?, priority = ?, result = ?, error = ?, started_at = ?, completed_at = ?, updated_at = ?
WHERE id = ?`
	if _, err := tx.ExecContext(ctx, r.Dialect.Rebind(update),
		string(next.Status),
		string(next.Priority),
		result,
		next.Error,
		nullTime(next.StartedAt),
		nullTime(next.CompletedAt),
		next.UpdatedAt,
		next.ID,
	); err != nil {
		return current, err
	}
	if err := tx.Commit(); err != nil {
		return current, err
	}
	return next, nil
}

// ListByStatus returns tasks in any of statuses, oldest first.
func (r *SQLRepo) ListByStatus(ctx context.Context, statuses ...Status) ([]Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	query := `SELECT ` + taskColumns + ` FROM analysis_tasks WHERE status IN (` + placeholders(len(statuses)) + `) ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// DeleteTerminalBefore removes finished tasks last updated before cutoff.
func (r *SQLRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]Task, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	args := make([]any, 0, len(TerminalStatuses)+1)
	for _, s := range TerminalStatuses {
		args = append(args, string(s))
	}
	args = append(args, cutoff)
	where := ` WHERE status IN (` + placeholders(len(TerminalStatuses)) + `) AND updated_at < ?`

	rows, err := tx.QueryContext(ctx, r.Dialect.Rebind(`SELECT `+taskColumns+` FROM analysis_tasks`+where), args...)
	if err != nil {
		return nil, err
	}
	removed, err := collect(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM analysis_tasks`+where), args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

func collect(rows *sql.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	var typesJSON, questionsJSON string
	var priority, status string
	var result sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&t.ID,
		&t.DocumentID,
		&typesJSON,
		&questionsJSON,
		&priority,
		&status,
		&result,
		&t.Error,
		&t.CreatedAt,
		&startedAt,
		&completedAt,
		&t.UpdatedAt,
	); err != nil {
		return Task{}, err
	}
	t.Priority = Priority(priority)
	t.Status = Status(status)
	if err := json.Unmarshal([]byte(typesJSON), &t.Tasks); err != nil {
		return Task{}, fmt.Errorf("decode tasks column: %w", err)
	}
	if err := json.Unmarshal([]byte(questionsJSON), &t.Questions); err != nil {
		return Task{}, fmt.Errorf("decode questions column: %w", err)
	}
	if result.Valid && result.String != "" {
		var s state.AgentState
		if err := json.Unmarshal([]byte(result.String), &s); err != nil {
			return Task{}, fmt.Errorf("decode result column: %w", err)
		}
		t.Result = &s
	}
	if startedAt.Valid {
		v := startedAt.Time
		t.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return t, nil
}

func marshalQuestions(qs []string) (string, error) {
	if qs == nil {
		qs = []string{}
	}
	b, err := json.Marshal(qs)
	return string(b), err
}

func marshalResult(s *state.AgentState) (any, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var _ Repo = (*SQLRepo)(nil)
