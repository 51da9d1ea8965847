package state

import (
	"encoding/json"
	"testing"
)

func TestLogAppendDoesNotAliasEarlierCopies(t *testing.T) {
	base := Log{}.Append("a")
	left := base.Append("b")
	right := base.Append("c")

	if len(base) != 1 || base[0] != "a" {
		t.Fatalf("base mutated: %v", base)
	}
	if left[1] != "b" || right[1] != "c" {
		t.Fatalf("expected independent branches, got %v and %v", left, right)
	}
}

func TestLogMergeConcatenates(t *testing.T) {
	got := Log{"x", "y"}.Merge(Log{"z"})
	want := []string{"x", "y", "z"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestWithErrorLeavesOriginalUntouched(t *testing.T) {
	s := New("doc-1", "doc.pdf", "task-1", []string{"q"})
	next := s.WithError("parser: boom").WithTrace("t1")

	if s.Errors.Len() != 0 || s.AgentTrace.Len() != 0 {
		t.Fatalf("original state changed: %+v", s)
	}
	if next.Errors.Len() != 1 || next.AgentTrace.Len() != 1 {
		t.Fatalf("expected one error and one trace, got %+v", next)
	}
}

func TestNewCopiesQuestions(t *testing.T) {
	qs := []string{"what?"}
	s := New("d", "p", "t", qs)
	qs[0] = "changed"
	if s.Questions[0] != "what?" {
		t.Fatalf("questions aliased caller slice")
	}
	if !s.HasQuestions() {
		t.Fatalf("expected questions")
	}
}

func TestFullTextJoinsChunks(t *testing.T) {
	s := AgentState{Chunks: []Chunk{{Content: "one"}, {Content: "two"}}}
	if got := s.FullText(); got != "one\n\ntwo" {
		t.Fatalf("unexpected full text %q", got)
	}
}

func TestAgentResultValue(t *testing.T) {
	if _, ok := Failed("nope").Value(); ok {
		t.Fatalf("failed result must not expose payload")
	}
	v, ok := Succeeded(42, nil).Value()
	if !ok || v.(int) != 42 {
		t.Fatalf("expected payload 42, got %v %v", v, ok)
	}
}

func TestStateJSONRoundTripKeepsLogs(t *testing.T) {
	s := New("d", "p", "t", nil).WithError("e").WithTrace("tr")
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back AgentState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Errors.Len() != 1 || back.AgentTrace[0] != "tr" {
		t.Fatalf("logs lost: %+v", back)
	}
}
