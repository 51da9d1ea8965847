package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jlorenzo681/documind/internal/llm"
)

const ocrPrompt = "Transcribe all text visible in this image. Preserve reading order and paragraph breaks. Return only the transcribed text."

// Client implements llm.Client using OpenAI Chat Completions and Embeddings.
type Client struct {
	client         openai.Client
	router         llm.Router
	embeddingModel string
}

// NewClient constructs a new OpenAI client. Extra options are passed to the SDK.
func NewClient(apiKey string, router llm.Router, embeddingModel string, opts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(router.StandardModel) == "" {
		return nil, fmt.Errorf("a standard model is required for OpenAI")
	}
	if embeddingModel == "" {
		embeddingModel = openai.EmbeddingModelTextEmbedding3Small
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client:         openai.NewClient(all...),
		router:         router,
		embeddingModel: embeddingModel,
	}, nil
}

// Complete sends a system+user chat completion.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	model := c.router.ModelFor(req.Complexity)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: openai.Ptr(shared.NewResponseFormatJSONObjectParam()),
		}
	}
	return c.send(ctx, model, params)
}

// Recognize transcribes text from an image with a vision-capable model.
func (c *Client) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	model := c.router.ModelFor(llm.Standard)
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(ocrPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Temperature: openai.Float(0),
	}
	resp, err := c.send(ctx, model, params)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *Client) send(ctx context.Context, model string, params openai.ChatCompletionNewParams) (llm.Response, error) {
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return llm.Response{}, fmt.Errorf("openai request timeout: %w", err)
		}
		return llm.Response{}, fmt.Errorf("openai error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return llm.Response{}, llm.ErrEmptyResponse
	}
	if completion.Model != "" {
		model = completion.Model
	}
	return llm.Response{
		Text:        content,
		Model:       model,
		TotalTokens: int(completion.Usage.TotalTokens),
	}, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if int(d.Index) < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai embeddings: missing vector %d", i)
		}
	}
	return out, nil
}

var _ llm.Client = (*Client)(nil)
