package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore saves and retrieves uploaded documents and generated reports.
type ObjectStore interface {
	// Save stores r under a fresh key namespaced by owner and returns the key,
	// the byte count and the sniffed MIME type.
	Save(ctx context.Context, owner string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Delete(ctx context.Context, storageKey string) error
	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}
