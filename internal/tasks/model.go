package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/jlorenzo681/documind/internal/state"
)

// TaskType selects an analysis to run.
type TaskType string

const (
	TypeSummarize  TaskType = "summarize"
	TypeQA         TaskType = "qa"
	TypeCompliance TaskType = "compliance"
	TypeFull       TaskType = "full"
)

// Priority is recorded on the task. Dispatch order does not depend on it.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// TerminalStatuses lists the statuses a task never leaves.
var TerminalStatuses = []Status{StatusCompleted, StatusFailed, StatusCancelled}

// IsTerminal reports whether s is completed, failed or cancelled.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Task is one submitted analysis.
type Task struct {
	ID          string            `json:"task_id"`
	DocumentID  string            `json:"document_id"`
	Tasks       []TaskType        `json:"tasks"`
	Questions   []string          `json:"questions"`
	Priority    Priority          `json:"priority"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Result      *state.AgentState `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// ProcessingTime is the time between start and completion, or zero.
func (t Task) ProcessingTime() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

func (t Task) clone() Task {
	out := t
	out.Tasks = append([]TaskType(nil), t.Tasks...)
	out.Questions = append([]string(nil), t.Questions...)
	if t.StartedAt != nil {
		v := *t.StartedAt
		out.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		out.CompletedAt = &v
	}
	if t.Result != nil {
		v := *t.Result
		out.Result = &v
	}
	return out
}

var estimateSeconds = map[TaskType]int{
	TypeSummarize:  15,
	TypeQA:         20,
	TypeCompliance: 15,
	TypeFull:       45,
}

// EstimateSeconds returns a rough completion estimate for a set of task types.
func EstimateSeconds(types []TaskType) int {
	total := 10
	for _, t := range types {
		if s, ok := estimateSeconds[t]; ok {
			total += s
			continue
		}
		total += 10
	}
	return total
}

// ParseTaskTypes normalizes requested task names. An empty list means full.
func ParseTaskTypes(raw []string) ([]TaskType, error) {
	if len(raw) == 0 {
		return []TaskType{TypeFull}, nil
	}
	out := make([]TaskType, 0, len(raw))
	for _, r := range raw {
		t := TaskType(strings.ToLower(strings.TrimSpace(r)))
		switch t {
		case TypeSummarize, TypeQA, TypeCompliance, TypeFull:
			out = append(out, t)
		default:
			return nil, fmt.Errorf("%w: unknown task type %q", ErrInvalidInput, r)
		}
	}
	return out, nil
}

// ParsePriority normalizes a priority. An empty value means normal.
func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, raw)
	}
}
