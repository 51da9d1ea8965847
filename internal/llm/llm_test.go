package llm

import (
	"context"
	"errors"
	"testing"
)

func TestRouterModelFor(t *testing.T) {
	r := Router{SimpleModel: "small", StandardModel: "mid", ComplexModel: ""}
	cases := []struct {
		c    Complexity
		want string
	}{
		{Simple, "small"},
		{Standard, "mid"},
		{Complex, "mid"},
		{"", "mid"},
	}
	for _, tc := range cases {
		if got := r.ModelFor(tc.c); got != tc.want {
			t.Fatalf("ModelFor(%q) = %q, want %q", tc.c, got, tc.want)
		}
	}
}

func TestRouterOverride(t *testing.T) {
	r := ProviderDefaults("anthropic").Override(Router{ComplexModel: "claude-opus"})
	if r.ComplexModel != "claude-opus" {
		t.Fatalf("expected override, got %q", r.ComplexModel)
	}
	if r.SimpleModel == "" {
		t.Fatalf("expected provider default to survive")
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n[]\n```":            "[]",
		"  {\"b\":2} ":            `{"b":2}`,
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Fatalf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

type stubClient struct {
	resp Response
	err  error
}

func (s stubClient) Complete(context.Context, Request) (Response, error) { return s.resp, s.err }
func (s stubClient) Embed(context.Context, []string) ([][]float64, error) {
	return nil, s.err
}

func TestInstrumentPassesThrough(t *testing.T) {
	c := Instrument(stubClient{resp: Response{Text: "ok", Model: "m", TotalTokens: 3}}, "test")
	resp, err := c.Complete(context.Background(), Request{User: "hi"})
	if err != nil || resp.Text != "ok" {
		t.Fatalf("unexpected result %+v %v", resp, err)
	}

	boom := errors.New("boom")
	c = Instrument(stubClient{err: boom}, "test")
	if _, err := c.Complete(context.Background(), Request{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error to surface, got %v", err)
	}
}

func TestPlaceholderClient(t *testing.T) {
	if _, err := (PlaceholderClient{}).Complete(context.Background(), Request{}); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}
