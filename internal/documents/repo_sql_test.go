package documents

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jlorenzo681/documind/internal/shared/storage/db"
)

func TestSQLRepoCreateAndGet(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	repo := &SQLRepo{DB: conn, Dialect: db.MySQL}

	now := time.Now().UTC()
	pages := 3
	doc := Document{ID: "d-1", FileName: "a.pdf", ContentType: "application/pdf", SizeBytes: 10,
		PageCount: &pages, StorageKey: "k/a.pdf", Owner: "anonymous", CreatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("VALUES (?, ?, ?, ?, ?, ?, ?, ?)")).
		WithArgs("d-1", "a.pdf", "application/pdf", int64(10), 3, "k/a.pdf", "anonymous", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = ?")).
		WithArgs("d-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "content_type", "size_bytes", "page_count", "storage_key", "owner", "created_at"}).
			AddRow("d-1", "a.pdf", "application/pdf", 10, 3, "k/a.pdf", "anonymous", now))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PageCount == nil || *got.PageCount != 3 {
		t.Fatalf("expected page count 3, got %v", got.PageCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLRepoDeleteMissing(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	repo := &SQLRepo{DB: conn, Dialect: db.Postgres}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
