package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jlorenzo681/documind/internal/llm"
	"github.com/jlorenzo681/documind/internal/state"
)

const (
	mapReduceThreshold = 10
	summarySeparator   = "\n\n---\n\n"
	summaryTemperature = 0.3
)

// Summarizer produces an executive summary, a detailed summary and key points.
// Documents with more than ten chunks are summarized chunk by chunk first.
type Summarizer struct {
	LLM llm.Client
	// MapConcurrency bounds parallel chunk summaries. Zero means 4.
	MapConcurrency int
}

func (a *Summarizer) Name() string { return NameSummarizer }

func (a *Summarizer) Execute(ctx context.Context, s state.AgentState) state.AgentState {
	return observe(ctx, NameSummarizer, s, a.summarize)
}

func (a *Summarizer) summarize(ctx context.Context, s state.AgentState) state.AgentState {
	s = trace(s, NameSummarizer, "Starting summarization")

	if a.LLM == nil {
		return fail(s, NameSummarizer, "Summarization failed: no model client configured")
	}

	text := s.FullText()
	var err error
	if len(s.Chunks) > mapReduceThreshold {
		text, err = a.mapChunks(ctx, s.Chunks)
		if err != nil {
			return fail(s, NameSummarizer, "Summarization failed: "+err.Error())
		}
	}

	summary, err := a.direct(ctx, text)
	if err != nil {
		return fail(s, NameSummarizer, "Summarization failed: "+err.Error())
	}
	summary.WordCount = len(strings.Fields(s.RawText))
	if summary.WordCount == 0 {
		summary.WordCount = len(strings.Fields(s.FullText()))
	}

	s = trace(s, NameSummarizer, "Summarization completed")
	s.Summary = summary
	return s
}

// mapChunks summarizes every chunk and joins the results in chunk order.
func (a *Summarizer) mapChunks(ctx context.Context, chunks []state.Chunk) (string, error) {
	limit := a.MapConcurrency
	if limit <= 0 {
		limit = 4
	}
	parts := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range chunks {
		g.Go(func() error {
			resp, err := a.LLM.Complete(gctx, llm.Request{
				System:      chunkSummaryPrompt,
				User:        c.Content,
				Temperature: summaryTemperature,
				Complexity:  llm.Simple,
			})
			if err != nil {
				return fmt.Errorf("chunk %d: %w", c.Index, err)
			}
			parts[i] = resp.Text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(parts, summarySeparator), nil
}

type detailedSummary struct {
	DetailedSummary string   `json:"detailed_summary"`
	KeyPoints       []string `json:"key_points"`
	DocumentType    string   `json:"document_type"`
}

func (a *Summarizer) direct(ctx context.Context, text string) (*state.Summary, error) {
	executive, err := a.LLM.Complete(ctx, llm.Request{
		System:      executiveSummaryPrompt,
		User:        text,
		Temperature: summaryTemperature,
		Complexity:  llm.Standard,
	})
	if err != nil {
		return nil, err
	}

	detailed, err := a.LLM.Complete(ctx, llm.Request{
		System:      detailedSummaryPrompt,
		User:        text,
		Temperature: summaryTemperature,
		JSON:        true,
		Complexity:  llm.Complex,
	})
	if err != nil {
		return nil, err
	}

	d := parseDetailed(detailed.Text)
	return &state.Summary{
		ExecutiveSummary: executive.Text,
		DetailedSummary:  d.DetailedSummary,
		KeyPoints:        d.KeyPoints,
		DocumentType:     d.DocumentType,
	}, nil
}

// parseDetailed decodes the structured summary. Output that is not a JSON
// object becomes the detailed summary verbatim.
func parseDetailed(raw string) detailedSummary {
	var d detailedSummary
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &d); err != nil {
		return detailedSummary{DetailedSummary: raw, KeyPoints: []string{}, DocumentType: "unknown"}
	}
	if d.KeyPoints == nil {
		d.KeyPoints = []string{}
	}
	if d.DocumentType == "" {
		d.DocumentType = "unknown"
	}
	return d
}
