package documents

import (
	"context"
	"time"
)

// DocumentsRepo defines persistence operations for documents.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	// List returns documents newest first.
	List(ctx context.Context, limit, offset int) ([]Document, error)
	Delete(ctx context.Context, id string) error
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]Document, error)
}
