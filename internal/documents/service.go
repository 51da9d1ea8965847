package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jlorenzo681/documind/internal/extract"
	"github.com/jlorenzo681/documind/internal/shared/storage/object"
	"github.com/jlorenzo681/documind/internal/shared/telemetry"
)

var allowedTypes = map[string]bool{
	extract.MimePDF:      true,
	extract.MimeDOCX:     true,
	extract.MimeText:     true,
	extract.MimeMarkdown: true,
	extract.MimePNG:      true,
	extract.MimeJPEG:     true,
}

// Service contains business logic for documents. It also serves stored
// files to the parsing agent and resolves document IDs for the task runner.
type Service struct {
	Store object.ObjectStore
	Repo  DocumentsRepo
}

// Upload validates, stores and records a document.
func (s *Service) Upload(ctx context.Context, owner, fileName, contentType string, r io.Reader) (Document, error) {
	fileName = strings.TrimSpace(filepath.Base(fileName))
	if fileName == "" || fileName == "." {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return Document{}, ErrTooLarge
	}
	if len(data) == 0 {
		return Document{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	mimeType := extract.NormalizeMimeType(contentType, fileName, data)
	if !allowedTypes[mimeType] {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
	// The parser selects an extractor by extension, so the stored name
	// always carries the canonical one.
	storedName := strings.TrimSuffix(fileName, filepath.Ext(fileName)) + extract.ExtForMime(mimeType)

	key, size, _, err := s.Store.Save(ctx, owner, storedName, bytes.NewReader(data))
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:          uuid.NewString(),
		FileName:    fileName,
		ContentType: mimeType,
		SizeBytes:   size,
		PageCount:   pdfPageCount(data, mimeType),
		StorageKey:  key,
		Owner:       owner,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		_ = s.Store.Delete(ctx, key)
		return Document{}, err
	}
	telemetry.Info("document.uploaded", map[string]any{
		"document_id":  doc.ID,
		"content_type": mimeType,
		"size_bytes":   size,
	})
	return doc, nil
}

func pdfPageCount(data []byte, mimeType string) *int {
	if mimeType != extract.MimePDF {
		return nil
	}
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		telemetry.Warn("document.page_count_failed", map[string]any{"error": err.Error()})
		return nil
	}
	return &n
}

// Get returns document metadata.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	if strings.TrimSpace(id) == "" {
		return Document{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns documents newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Document, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Delete removes the stored file and its record.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return s.Repo.Delete(ctx, id)
}

// Open reads a stored document by storage key.
func (s *Service) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.Store.Open(ctx, path)
}

// Locate returns the storage key of a document.
func (s *Service) Locate(ctx context.Context, documentID string) (string, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	return doc.StorageKey, nil
}

// PurgeBefore deletes documents uploaded before cutoff and returns how many
// were removed.
func (s *Service) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	docs, err := s.Repo.ListCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range docs {
		if err := s.Delete(ctx, d.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}
