package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID  string    `json:"document_id"`
	FileName    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   *int      `json:"page_count,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"filename"`
	SizeBytes  int64  `json:"size_bytes"`
	Message    string `json:"message"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		PageCount:   doc.PageCount,
		UploadedAt:  doc.CreatedAt,
	}
}
