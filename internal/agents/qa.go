package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/jlorenzo681/documind/internal/llm"
	"github.com/jlorenzo681/documind/internal/state"
)

const (
	qaTemperature  = 0.2
	previewLength  = 200
	contextDivider = "\n\n---\n\n"
)

// QA answers the run's questions from the most relevant chunks.
type QA struct {
	LLM       llm.Client
	Retriever Retriever
	TopK      int
}

func (a *QA) Name() string { return NameQA }

func (a *QA) Execute(ctx context.Context, s state.AgentState) state.AgentState {
	return observe(ctx, NameQA, s, a.answer)
}

func (a *QA) answer(ctx context.Context, s state.AgentState) state.AgentState {
	if !s.HasQuestions() {
		return trace(s, NameQA, "No questions provided, skipping QA")
	}
	s = trace(s, NameQA, fmt.Sprintf("Answering %d questions", len(s.Questions)))

	if a.LLM == nil {
		return fail(s, NameQA, "QA failed: no model client configured")
	}
	retriever := a.Retriever
	if retriever == nil {
		retriever = KeywordRetriever{}
	}

	results := make([]state.QAResult, 0, len(s.Questions))
	for _, q := range s.Questions {
		r, err := a.answerOne(ctx, retriever, q, s.Chunks)
		if err != nil {
			return fail(s, NameQA, "QA failed: "+err.Error())
		}
		results = append(results, r)
	}

	s = trace(s, NameQA, fmt.Sprintf("Answered %d questions", len(results)))
	s.QAResults = results
	return s
}

func (a *QA) answerOne(ctx context.Context, r Retriever, question string, chunks []state.Chunk) (state.QAResult, error) {
	hits, err := r.Retrieve(ctx, question, chunks, a.TopK)
	if err != nil {
		return state.QAResult{}, err
	}

	blocks := make([]string, len(hits))
	sources := make([]state.Source, len(hits))
	var total float64
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[Source %d]\n%s", i+1, h.Content)
		sources[i] = state.Source{
			ChunkIndex:     h.Index,
			Page:           h.Page,
			ContentPreview: preview(h.Content),
		}
		total += h.Score
	}

	resp, err := a.LLM.Complete(ctx, llm.Request{
		System:      qaPrompt,
		User:        fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", strings.Join(blocks, contextDivider), question),
		Temperature: qaTemperature,
		Complexity:  llm.Standard,
	})
	if err != nil {
		return state.QAResult{}, err
	}

	confidence := 0.0
	if len(hits) > 0 {
		confidence = total / float64(len(hits))
	}
	return state.QAResult{
		Question:   question,
		Answer:     resp.Text,
		Confidence: confidence,
		Sources:    sources,
	}, nil
}

// preview cuts s to previewLength runes and always appends an ellipsis.
func preview(s string) string {
	if r := []rune(s); len(r) > previewLength {
		s = string(r[:previewLength])
	}
	return s + "..."
}
