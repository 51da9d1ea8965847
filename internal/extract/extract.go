package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
	MimePNG      = "image/png"
	MimeJPEG     = "image/jpeg"
	MimeTIFF     = "image/tiff"
)

// Document types recorded on the analysis state.
const (
	TypePDF   = "pdf"
	TypeDOCX  = "docx"
	TypeText  = "text"
	TypeImage = "image"
)

var (
	// ErrUnsupportedType is returned for extensions outside the supported set.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrOCRNotConfigured is returned when an image is parsed without a Recognizer.
	ErrOCRNotConfigured = errors.New("OCR not configured")
)

// Recognizer turns an image into text.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Result is the outcome of extraction.
type Result struct {
	Text    string
	DocType string
	Pages   int
}

// Extractor converts stored documents to plain text.
type Extractor struct {
	OCR Recognizer
}

// DocTypeForExt maps a file extension (with or without the dot) to a document type.
func DocTypeForExt(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	switch ext {
	case ".pdf":
		return TypePDF, nil
	case ".docx":
		return TypeDOCX, nil
	case ".txt", ".md":
		return TypeText, nil
	case ".png", ".jpg", ".jpeg", ".tiff":
		return TypeImage, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}

// Extract reads text from data. fileName selects the parser by extension.
func (e Extractor) Extract(ctx context.Context, data []byte, fileName string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	docType, err := DocTypeForExt(ext)
	if err != nil {
		return Result{}, err
	}

	res := Result{DocType: docType}
	switch docType {
	case TypePDF:
		res.Text, res.Pages, err = extractPDF(data)
	case TypeDOCX:
		res.Text, err = extractDOCX(data)
	case TypeText:
		if !utf8.Valid(data) {
			return Result{}, errors.New("text file is not valid UTF-8")
		}
		res.Text = string(data)
	case TypeImage:
		if e.OCR == nil {
			return Result{}, ErrOCRNotConfigured
		}
		res.Text, err = e.OCR.Recognize(ctx, data, MimeForExt(ext))
	}
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// MimeForExt returns the canonical MIME type for a supported extension.
func MimeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	case ".txt":
		return MimeText
	case ".md":
		return MimeMarkdown
	case ".png":
		return MimePNG
	case ".jpg", ".jpeg":
		return MimeJPEG
	case ".tiff":
		return MimeTIFF
	default:
		return "application/octet-stream"
	}
}

// ExtForMime returns the file extension stored for an accepted MIME type.
func ExtForMime(mimeType string) string {
	switch mimeType {
	case MimePDF:
		return ".pdf"
	case MimeDOCX:
		return ".docx"
	case MimeText:
		return ".txt"
	case MimeMarkdown:
		return ".md"
	case MimePNG:
		return ".png"
	case MimeJPEG:
		return ".jpg"
	case MimeTIFF:
		return ".tiff"
	default:
		return ""
	}
}

// extractPDF prefixes each non-blank page with a "[Page N]" marker.
func extractPDF(data []byte) (string, int, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", 0, err
	}
	total := pdfReader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := pdfReader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("[Page %d]\n%s", i, text))
	}
	return strings.Join(pages, "\n\n"), total, nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}

	return docxParagraphs(raw)
}

// docxParagraphs joins non-empty paragraphs with a blank line.
func docxParagraphs(raw []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br":
				current.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		}
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		paragraphs = append(paragraphs, p)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// NormalizeMimeType strips parameters and resolves generic zip uploads to the
// Office type they contain.
func NormalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case "application/zip", "application/octet-stream", "":
	default:
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}
	if clean == "application/zip" {
		return clean
	}
	if m := MimeForExt(filepath.Ext(fileName)); m != "application/octet-stream" {
		return m
	}
	return clean
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			return MimeDOCX
		}
	}
	return ""
}
