package analyses

import (
	"time"

	"github.com/jlorenzo681/documind/internal/state"
	"github.com/jlorenzo681/documind/internal/tasks"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	DocumentID string         `json:"document_id"`
	Tasks      []string       `json:"tasks"`
	Questions  []string       `json:"questions"`
	Priority   string         `json:"priority"`
	Options    map[string]any `json:"options"`
}

// AnalyzeResponse acknowledges a submitted analysis.
type AnalyzeResponse struct {
	TaskID               string           `json:"task_id"`
	DocumentID           string           `json:"document_id"`
	Status               tasks.Status     `json:"status"`
	Tasks                []tasks.TaskType `json:"tasks"`
	EstimatedTimeSeconds int              `json:"estimated_time_seconds"`
	CreatedAt            time.Time        `json:"created_at"`
}

// StatusResponse reports task progress.
type StatusResponse struct {
	TaskID      string           `json:"task_id"`
	DocumentID  string           `json:"document_id"`
	Status      tasks.Status     `json:"status"`
	Tasks       []tasks.TaskType `json:"tasks"`
	Priority    tasks.Priority   `json:"priority"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// ResultResponse is the full analysis outcome.
type ResultResponse struct {
	TaskID                string                  `json:"task_id"`
	DocumentID            string                  `json:"document_id"`
	Status                tasks.Status            `json:"status"`
	Summary               *state.Summary          `json:"summary"`
	QAResults             []state.QAResult        `json:"qa_results"`
	Compliance            *state.ComplianceReport `json:"compliance"`
	ReportURL             string                  `json:"report_url,omitempty"`
	Errors                []string                `json:"errors"`
	ProcessingTimeSeconds float64                 `json:"processing_time_seconds"`
	CompletedAt           *time.Time              `json:"completed_at,omitempty"`
}

func toStatus(t tasks.Task) StatusResponse {
	return StatusResponse{
		TaskID:      t.ID,
		DocumentID:  t.DocumentID,
		Status:      t.Status,
		Tasks:       t.Tasks,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		Error:       t.Error,
	}
}

func toResult(t tasks.Task, reportURL string) ResultResponse {
	resp := ResultResponse{
		TaskID:                t.ID,
		DocumentID:            t.DocumentID,
		Status:                t.Status,
		QAResults:             []state.QAResult{},
		Errors:                []string{},
		ProcessingTimeSeconds: t.ProcessingTime().Seconds(),
		CompletedAt:           t.CompletedAt,
	}
	if r := t.Result; r != nil {
		resp.Summary = r.Summary
		if r.QAResults != nil {
			resp.QAResults = r.QAResults
		}
		resp.Compliance = r.Compliance
		resp.Errors = r.Errors.Entries()
		if r.FinalReportPath != "" {
			resp.ReportURL = reportURL
		}
	}
	return resp
}
