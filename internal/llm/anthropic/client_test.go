package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jlorenzo681/documind/internal/llm"
)

func TestCompleteJSONStripsFencesAndSendsSystem(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
"content":[{"type":"text","text":"` + "```json\\n{\\\"ok\\\":true}\\n```" + `"}],
"stop_reason":"end_turn","usage":{"input_tokens":4,"output_tokens":6}}`))
	}))
	defer server.Close()

	c, err := NewClient("k", llm.Router{StandardModel: "claude-test"}, option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := c.Complete(context.Background(), llm.Request{System: "be brief", User: "hi", JSON: true})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != `{"ok":true}` {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.TotalTokens != 10 {
		t.Fatalf("expected 10 tokens, got %d", resp.TotalTokens)
	}
	if body["model"] != "claude-test" {
		t.Fatalf("unexpected model %v", body["model"])
	}
	if _, ok := body["system"]; !ok {
		t.Fatalf("expected system prompt in request")
	}
}

func TestEmbedNotSupported(t *testing.T) {
	c, _ := NewClient("k", llm.DefaultRouter())
	if _, err := c.Embed(context.Background(), []string{"x"}); !errors.Is(err, llm.ErrEmbeddingsNotSupported) {
		t.Fatalf("expected ErrEmbeddingsNotSupported, got %v", err)
	}
}
