package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jlorenzo681/documind/internal/llm"
)

const defaultEmbeddingModel = "text-embedding-004"

// Client implements llm.Client using the Gemini API.
type Client struct {
	client         *genai.Client
	router         llm.Router
	embeddingModel string
}

// NewClient constructs a Gemini client. Call Close when done.
func NewClient(ctx context.Context, apiKey string, router llm.Router, embeddingModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	if embeddingModel == "" || strings.HasPrefix(embeddingModel, "text-embedding-3") {
		embeddingModel = defaultEmbeddingModel
	}
	return &Client{client: client, router: router, embeddingModel: embeddingModel}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Complete generates content for a single user prompt.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	name := c.router.ModelFor(req.Complexity)
	model := c.client.GenerativeModel(name)
	model.SetTemperature(float32(req.Temperature))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return llm.Response{}, fmt.Errorf("google API error: %w", err)
	}
	text := strings.TrimSpace(responseText(resp))
	if req.JSON {
		text = llm.StripFences(text)
	}
	if text == "" {
		return llm.Response{}, llm.ErrEmptyResponse
	}
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return llm.Response{Text: text, Model: name, TotalTokens: tokens}, nil
}

// Embed batches texts through the embedding model.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := c.client.EmbeddingModel(c.embeddingModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("google embeddings: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google embeddings: got %d vectors for %d inputs", len(res.Embeddings), len(texts))
	}
	out := make([][]float64, len(res.Embeddings))
	for i, e := range res.Embeddings {
		out[i] = toFloat64(e.Values)
	}
	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

var _ llm.Client = (*Client)(nil)
