// Package llmtest provides an in-memory llm.Client for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/jlorenzo681/documind/internal/llm"
)

// Reply is returned when a request matches.
type Reply struct {
	Text string
	Err  error
	// Fn, when set, computes the reply from the request.
	Fn func(llm.Request) (string, error)
}

// Fake answers Complete by matching the system prompt against registered
// prefixes. Unmatched requests get Default. It is safe for concurrent use.
type Fake struct {
	mu       sync.Mutex
	rules    []rule
	Default  Reply
	Vectors  map[string][]float64
	EmbedErr error
	calls    []llm.Request
}

type rule struct {
	prefix string
	reply  Reply
}

// On registers a reply for requests whose system prompt starts with prefix.
// Earlier registrations win.
func (f *Fake) On(prefix string, r Reply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, reply: r})
	return f
}

func (f *Fake) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, req)
	reply := f.Default
	for _, r := range f.rules {
		if strings.HasPrefix(req.System, r.prefix) {
			reply = r.reply
			break
		}
	}
	f.mu.Unlock()

	if reply.Fn != nil {
		text, err := reply.Fn(req)
		if err != nil {
			return llm.Response{}, err
		}
		return llm.Response{Text: text, Model: "fake"}, nil
	}
	if reply.Err != nil {
		return llm.Response{}, reply.Err
	}
	return llm.Response{Text: reply.Text, Model: "fake"}, nil
}

// Embed looks texts up in Vectors. Unknown texts embed as the zero vector.
func (f *Fake) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if f.EmbedErr != nil {
		return nil, f.EmbedErr
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.Vectors[t]
	}
	return out, nil
}

// Calls returns the requests seen so far.
func (f *Fake) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}
