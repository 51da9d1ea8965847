package documents

import (
	"errors"
	"time"
)

// MaxUploadBytes is the largest accepted upload.
const MaxUploadBytes = 50 << 20

// Document is an uploaded file and where it is stored.
type Document struct {
	ID          string
	FileName    string
	ContentType string
	SizeBytes   int64
	PageCount   *int
	StorageKey  string
	Owner       string
	CreatedAt   time.Time
}

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidInput    = errors.New("invalid document")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
)
