package tasks

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jlorenzo681/documind/internal/shared/storage/db"
)

var taskCols = []string{
	"id", "document_id", "tasks", "questions", "priority", "status", "result", "error",
	"created_at", "started_at", "completed_at", "updated_at",
}

func newMock(t *testing.T) (*SQLRepo, sqlmock.Sqlmock, func(dialect db.Dialect) *SQLRepo) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	with := func(d db.Dialect) *SQLRepo { return &SQLRepo{DB: conn, Dialect: d} }
	return with(db.Postgres), mock, with
}

func TestSQLRepoCreateRebindsForPostgres(t *testing.T) {
	repo, mock, _ := newMock(t)
	now := time.Now().UTC()
	task := Task{
		ID: "t-1", DocumentID: "doc-1", Tasks: []TaskType{TypeFull},
		Priority: PriorityNormal, Status: StatusQueued, CreatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)")).
		WithArgs("t-1", "doc-1", `["full"]`, `[]`, "normal", "queued", nil, "", now, nil, nil, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLRepoGetDecodesColumns(t *testing.T) {
	repo, mock, _ := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM analysis_tasks WHERE id = $1")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(
			"t-1", "doc-1", `["summarize","qa"]`, `["Who pays?"]`, "high", "completed",
			`{"document_id":"doc-1","task_id":"t-1","errors":["qa: QA failed: x"],"agent_trace":[]}`, "",
			now, now, now, now,
		))

	got, err := repo.Get(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusCompleted || got.Priority != PriorityHigh {
		t.Fatalf("unexpected status/priority: %s/%s", got.Status, got.Priority)
	}
	if len(got.Tasks) != 2 || got.Tasks[1] != TypeQA {
		t.Fatalf("unexpected tasks: %v", got.Tasks)
	}
	if got.Result == nil || got.Result.Errors.Len() != 1 {
		t.Fatalf("expected decoded result with one error, got %+v", got.Result)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("expected timestamps")
	}
}

func TestSQLRepoGetNotFound(t *testing.T) {
	repo, mock, _ := newMock(t)
	mock.ExpectQuery("FROM analysis_tasks").WillReturnRows(sqlmock.NewRows(taskCols))

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLRepoUpdateLocksRowOnPostgres(t *testing.T) {
	repo, mock, _ := newMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(
			"t-1", "doc-1", `["full"]`, `[]`, "normal", "queued", nil, "", now, nil, nil, now,
		))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE analysis_tasks")).
		WithArgs("processing", "normal", nil, "", sqlmock.AnyArg(), nil, sqlmock.AnyArg(), "t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Update(context.Background(), "t-1", func(t *Task) error {
		t.Status = StatusProcessing
		t.StartedAt = &now
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Fatalf("expected processing, got %s", got.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLRepoUpdateSkipsForUpdateOnSQLite(t *testing.T) {
	_, mock, with := newMock(t)
	repo := with(db.SQLite)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM analysis_tasks WHERE id = \?$`).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(
			"t-1", "doc-1", `["full"]`, `[]`, "normal", "completed", nil, "", now, now, now, now,
		))
	mock.ExpectRollback()

	got, err := repo.Update(context.Background(), "t-1", func(t *Task) error {
		if t.Status.IsTerminal() {
			return ErrTerminal
		}
		return nil
	})
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected current task back, got %s", got.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLRepoDeleteTerminalBefore(t *testing.T) {
	repo, mock, _ := newMock(t)
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	old := cutoff.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN ($1, $2, $3) AND updated_at < $4")).
		WithArgs("completed", "failed", "cancelled", cutoff).
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(
			"t-old", "doc-1", `["full"]`, `[]`, "normal", "completed", nil, "", old, old, old, old,
		))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM analysis_tasks WHERE status IN ($1, $2, $3) AND updated_at < $4")).
		WithArgs("completed", "failed", "cancelled", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.DeleteTerminalBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteTerminalBefore: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != "t-old" {
		t.Fatalf("unexpected removed: %+v", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
