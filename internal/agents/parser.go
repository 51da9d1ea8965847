package agents

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jlorenzo681/documind/internal/extract"
	"github.com/jlorenzo681/documind/internal/state"
)

// maxDocumentBytes bounds what the parser will read from a source.
const maxDocumentBytes = 50 << 20

// Parser extracts text from the document and chunks it.
type Parser struct {
	Source    DocumentSource
	Extractor extract.Extractor
	ChunkSize int
	Overlap   int
}

// NewParser returns a parser with the default chunk geometry.
func NewParser(src DocumentSource, ocr extract.Recognizer) *Parser {
	return &Parser{
		Source:    src,
		Extractor: extract.Extractor{OCR: ocr},
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultChunkOverlap,
	}
}

func (p *Parser) Name() string { return NameParser }

func (p *Parser) Execute(ctx context.Context, s state.AgentState) state.AgentState {
	return observe(ctx, NameParser, s, p.parse)
}

func (p *Parser) parse(ctx context.Context, s state.AgentState) state.AgentState {
	s = trace(s, NameParser, "Starting document parsing")

	ext := strings.ToLower(filepath.Ext(s.DocumentPath))
	if _, err := extract.DocTypeForExt(ext); err != nil {
		return fail(s, NameParser, "Unsupported file type: "+ext)
	}

	data, err := p.read(ctx, s.DocumentPath)
	if err != nil {
		return fail(s, NameParser, "Parsing failed: "+err.Error())
	}
	res, err := p.Extractor.Extract(ctx, data, s.DocumentPath)
	if err != nil {
		return fail(s, NameParser, "Parsing failed: "+err.Error())
	}

	size, overlap := p.ChunkSize, p.Overlap
	if size <= 0 {
		size, overlap = DefaultChunkSize, DefaultChunkOverlap
	}
	chunks := ChunkText(res.Text, res.DocType, size, overlap)

	s = trace(s, NameParser, fmt.Sprintf("Parsed %d chunks from %s document", len(chunks), res.DocType))
	s.RawText = res.Text
	s.Chunks = chunks
	s.DocumentType = res.DocType
	return s
}

func (p *Parser) read(ctx context.Context, path string) ([]byte, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("no document source configured")
	}
	rc, err := p.Source.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}
	return data, nil
}
