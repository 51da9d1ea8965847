package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jlorenzo681/documind/internal/shared/storage/db"
)

const documentColumns = `id, filename, content_type, size_bytes, page_count, storage_key, owner, created_at`

// SQLRepo implements DocumentsRepo on any supported dialect.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// Create inserts a document row.
func (r *SQLRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (` + documentColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var pages any
	if doc.PageCount != nil {
		pages = *doc.PageCount
	}
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		doc.ID,
		doc.FileName,
		doc.ContentType,
		doc.SizeBytes,
		pages,
		doc.StorageKey,
		doc.Owner,
		doc.CreatedAt,
	)
	return err
}

// GetByID returns a document by ID.
func (r *SQLRepo) GetByID(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// List returns documents newest first.
func (r *SQLRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Delete removes a document row.
func (r *SQLRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCreatedBefore returns documents uploaded before cutoff.
func (r *SQLRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE created_at < ?`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var pages sql.NullInt64
	if err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.ContentType,
		&doc.SizeBytes,
		&pages,
		&doc.StorageKey,
		&doc.Owner,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}
	if pages.Valid {
		n := int(pages.Int64)
		doc.PageCount = &n
	}
	return doc, nil
}

var _ DocumentsRepo = (*SQLRepo)(nil)
