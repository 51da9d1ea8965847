package telemetry

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Info("analysis.status", map[string]any{"task_id": "t-1", "status": "completed"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "info" || entry["msg"] != "analysis.status" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
	if entry["task_id"] != "t-1" {
		t.Fatalf("expected task_id field, got %#v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts field, got %#v", entry)
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	SetLevel("info")

	Debug("noisy", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered, got %q", buf.String())
	}

	SetLevel("debug")
	defer SetLevel("info")
	Debug("noisy", nil)
	if buf.Len() == 0 {
		t.Fatalf("expected debug line once level lowered")
	}
}
