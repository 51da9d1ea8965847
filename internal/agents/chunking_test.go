package agents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextRawBoundary(t *testing.T) {
	text := strings.Repeat("a", 1500)

	chunks := ChunkText(text, "text", 1000, 200)

	require.Len(t, chunks, 2)
	assert.Equal(t, text[0:1000], chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Metadata["char_start"])
	assert.Equal(t, text[800:1500], chunks[1].Content)
	assert.Equal(t, 800, chunks[1].Metadata["char_start"])
	assert.Equal(t, 1, chunks[1].Index)
}

func TestChunkTextShortInputSingleChunk(t *testing.T) {
	chunks := ChunkText("  short document body \n", "text", 1000, 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, "short document body", chunks[0].Content)
	assert.Nil(t, chunks[0].Page)
}

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, ChunkText("", "text", 1000, 200))
	assert.Empty(t, ChunkText("   \n\n  ", "text", 1000, 200))
}

func TestChunkTextPrefersParagraphBreakPastMidpoint(t *testing.T) {
	text := strings.Repeat("x", 700) + "\n\n" + strings.Repeat("y", 800)

	chunks := ChunkText(text, "text", 1000, 200)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, strings.Repeat("x", 700), chunks[0].Content)
	assert.Equal(t, 702-200, chunks[1].Metadata["char_start"])
}

func TestChunkTextIgnoresEarlyParagraphBreakUsesSentence(t *testing.T) {
	text := strings.Repeat("x", 100) + "\n\n" + strings.Repeat("y", 600) + ". " + strings.Repeat("z", 900)

	chunks := ChunkText(text, "text", 1000, 200)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0].Content, "y."), "expected sentence boundary, got %q", chunks[0].Content[len(chunks[0].Content)-5:])
}

func TestChunkTextPageMarker(t *testing.T) {
	text := "[Page 1]\nIntro text.\n\n[Page 2]\nMore text."

	chunks := ChunkText(text, "pdf", 1000, 200)

	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Page)
	assert.Equal(t, 1, *chunks[0].Page)
	assert.Equal(t, "pdf", chunks[0].Metadata["doc_type"])
}

func TestChunkTextCoversInputWithoutGaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Sentence number ")
		b.WriteString(strings.Repeat("w", i%17))
		b.WriteString(". ")
		if i%9 == 0 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	chunks := ChunkText(text, "text", 300, 60)
	require.NotEmpty(t, chunks)

	covered := 0
	for _, c := range chunks {
		start := c.Metadata["char_start"].(int)
		require.LessOrEqual(t, start, covered, "gap before chunk %d", c.Index)
		pos := strings.Index(text[start:], c.Content)
		require.GreaterOrEqual(t, pos, 0)
		if end := start + pos + len(c.Content); end > covered {
			covered = end
		}
	}
	assert.Equal(t, len(strings.TrimRight(text, " \n")), covered)
}

func TestChunkTextAlwaysAdvances(t *testing.T) {
	chunks := ChunkText(strings.Repeat("b", 50), "text", 10, 10)
	assert.Len(t, chunks, 5)
}
