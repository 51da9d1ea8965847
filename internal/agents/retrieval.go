package agents

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/jlorenzo681/documind/internal/llm"
	"github.com/jlorenzo681/documind/internal/state"
)

// DefaultTopK is the number of chunks handed to the model per question.
const DefaultTopK = 5

// ScoredChunk pairs a chunk with its relevance to a question.
type ScoredChunk struct {
	state.Chunk
	Score float64
}

// Retriever ranks chunks against a question and returns at most k of them.
type Retriever interface {
	Retrieve(ctx context.Context, question string, chunks []state.Chunk, k int) ([]ScoredChunk, error)
}

// KeywordRetriever scores chunks by the share of question words they contain.
type KeywordRetriever struct{}

func (KeywordRetriever) Retrieve(ctx context.Context, question string, chunks []state.Chunk, k int) ([]ScoredChunk, error) {
	q := wordSet(question)
	denom := float64(len(q))
	if denom == 0 {
		denom = 1
	}

	scored := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		words := wordSet(c.Content)
		overlap := 0
		for w := range q {
			if _, ok := words[w]; ok {
				overlap++
			}
		}
		scored[i] = ScoredChunk{Chunk: c, Score: float64(overlap) / denom}
	}
	return topK(scored, k), nil
}

// maxCachedVectors bounds the embedding cache. The cache is dropped whole
// when a write would exceed it.
const maxCachedVectors = 10000

// EmbeddingRetriever ranks chunks by cosine similarity of their embeddings.
// Chunk vectors are cached by content and shared by concurrent runs, so only
// unseen chunks reach the model.
type EmbeddingRetriever struct {
	LLM llm.Client

	mu    sync.Mutex
	cache map[string][]float64
}

func (r *EmbeddingRetriever) Retrieve(ctx context.Context, question string, chunks []state.Chunk, k int) ([]ScoredChunk, error) {
	vecs, err := r.chunkVectors(ctx, chunks)
	if err != nil {
		return nil, err
	}

	qv, err := r.LLM.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(qv) == 0 {
		return nil, llm.ErrEmptyResponse
	}

	scored := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = ScoredChunk{Chunk: c, Score: cosine(qv[0], vecs[i])}
	}
	return topK(scored, k), nil
}

// chunkVectors returns one vector per chunk, embedding only contents missing
// from the cache. The lock is not held across the model call.
func (r *EmbeddingRetriever) chunkVectors(ctx context.Context, chunks []state.Chunk) ([][]float64, error) {
	vecs := make([][]float64, len(chunks))
	var missing []string
	seen := map[string]struct{}{}

	r.mu.Lock()
	for i, c := range chunks {
		if v, ok := r.cache[c.Content]; ok {
			vecs[i] = v
			continue
		}
		if _, dup := seen[c.Content]; !dup {
			seen[c.Content] = struct{}{}
			missing = append(missing, c.Content)
		}
	}
	r.mu.Unlock()
	if len(missing) == 0 {
		return vecs, nil
	}

	embedded, err := r.LLM.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	fresh := make(map[string][]float64, len(missing))
	for i, text := range missing {
		if i < len(embedded) {
			fresh[text] = embedded[i]
		}
	}

	r.mu.Lock()
	if r.cache == nil || len(r.cache)+len(fresh) > maxCachedVectors {
		r.cache = make(map[string][]float64, len(fresh))
	}
	for text, v := range fresh {
		r.cache[text] = v
	}
	r.mu.Unlock()

	for i, c := range chunks {
		if vecs[i] == nil {
			vecs[i] = fresh[c.Content]
		}
	}
	return vecs, nil
}

func topK(scored []ScoredChunk, k int) []ScoredChunk {
	if k <= 0 {
		k = DefaultTopK
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func wordSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}

func cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
