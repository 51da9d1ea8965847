package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jlorenzo681/documind/internal/llm"
)

const (
	maxTokens       = 4096
	jsonInstruction = "Respond with valid JSON only. No markdown, no explanation."
)

// Client implements llm.Client using the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	router llm.Router
}

// NewClient constructs a new Anthropic client.
func NewClient(apiKey string, router llm.Router, opts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{client: anthropic.NewClient(all...), router: router}, nil
}

// Complete sends a single user turn with an optional system prompt.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	model := c.router.ModelFor(req.Complexity)

	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("anthropic error: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if req.JSON {
		text = llm.StripFences(text)
	}
	if text == "" {
		return llm.Response{}, llm.ErrEmptyResponse
	}
	if m := string(message.Model); m != "" {
		model = m
	}
	return llm.Response{
		Text:        text,
		Model:       model,
		TotalTokens: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}

// Embed is not offered by Anthropic.
func (c *Client) Embed(context.Context, []string) ([][]float64, error) {
	return nil, llm.ErrEmbeddingsNotSupported
}

var _ llm.Client = (*Client)(nil)
