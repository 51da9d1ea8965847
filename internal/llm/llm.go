package llm

import (
	"context"
	"errors"
	"strings"
)

// Complexity selects a model tier for a call.
type Complexity string

const (
	Simple   Complexity = "simple"
	Standard Complexity = "standard"
	Complex  Complexity = "complex"
)

// Request is a single-turn completion request.
type Request struct {
	System      string
	User        string
	Temperature float64
	// JSON asks the provider for a JSON response when it supports a JSON mode.
	JSON       bool
	Complexity Complexity
}

// Response carries the completion text.
type Response struct {
	Text        string
	Model       string
	TotalTokens int
}

// Client abstracts LLM providers for document analysis.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

var (
	// ErrNotImplemented is returned by the placeholder client.
	ErrNotImplemented = errors.New("LLM not implemented")
	// ErrEmbeddingsNotSupported is returned by providers without an embeddings API.
	ErrEmbeddingsNotSupported = errors.New("embeddings not supported by provider")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrNotImplemented
}

// Embed returns ErrNotImplemented.
func (PlaceholderClient) Embed(context.Context, []string) ([][]float64, error) {
	return nil, ErrNotImplemented
}

// StripFences removes a surrounding markdown code fence from model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
