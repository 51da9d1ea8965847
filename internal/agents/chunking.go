package agents

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jlorenzo681/documind/internal/state"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var pageMarker = regexp.MustCompile(`\[Page (\d+)\]`)

// ChunkText splits text into overlapping windows of roughly size bytes. A
// window that does not reach the end of the text is cut at the last paragraph
// break, or failing that the last sentence end, past its midpoint.
func ChunkText(text, docType string, size, overlap int) []state.Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []state.Chunk
	start := 0
	index := 0
	for start < len(text) {
		end := start + size
		if end < len(text) {
			mid := start + size/2
			if brk := strings.LastIndex(text[start:end], "\n\n"); brk >= 0 && start+brk > mid {
				end = start + brk + 2
			} else if brk := strings.LastIndex(text[start:end], ". "); brk >= 0 && start+brk > mid {
				end = start + brk + 2
			}
		} else {
			end = len(text)
		}

		if content := strings.TrimSpace(text[start:end]); content != "" {
			chunks = append(chunks, state.Chunk{
				Content: content,
				Page:    pageOf(content),
				Index:   index,
				Metadata: map[string]any{
					"doc_type":   docType,
					"char_start": start,
				},
			})
			index++
		}

		if end >= len(text) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func pageOf(content string) *int {
	m := pageMarker.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
