package state

import "time"

// Chunk is a contiguous slice of the extracted document text.
type Chunk struct {
	Content  string         `json:"content"`
	Page     *int           `json:"page,omitempty"`
	Index    int            `json:"chunk_index"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Summary is produced by the summarizer.
type Summary struct {
	ExecutiveSummary string   `json:"executive_summary"`
	DetailedSummary  string   `json:"detailed_summary"`
	KeyPoints        []string `json:"key_points"`
	DocumentType     string   `json:"document_type"`
	WordCount        int      `json:"word_count"`
}

// Source cites a chunk used to answer a question.
type Source struct {
	ChunkIndex     int    `json:"chunk_index"`
	Page           *int   `json:"page,omitempty"`
	ContentPreview string `json:"content_preview"`
}

// QAResult is one answered question.
type QAResult struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []Source `json:"sources"`
}

// ComplianceIssue is a single finding.
type ComplianceIssue struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Excerpt     string `json:"excerpt"`
}

// ComplianceReport aggregates compliance findings.
type ComplianceReport struct {
	OverallRiskScore float64           `json:"overall_risk_score"`
	RiskLevel        string            `json:"risk_level"`
	Issues           []ComplianceIssue `json:"issues"`
	Recommendations  []string          `json:"recommendations"`
	ClausesAnalyzed  int               `json:"clauses_analyzed"`
}

// AgentState is the record threaded through the pipeline. It is passed by
// value; each agent returns the next version.
type AgentState struct {
	DocumentID      string            `json:"document_id"`
	DocumentPath    string            `json:"document_path"`
	DocumentType    string            `json:"document_type,omitempty"`
	RawText         string            `json:"raw_text,omitempty"`
	Chunks          []Chunk           `json:"chunks,omitempty"`
	Summary         *Summary          `json:"summary,omitempty"`
	QAResults       []QAResult        `json:"qa_results,omitempty"`
	Compliance      *ComplianceReport `json:"compliance_report,omitempty"`
	Questions       []string          `json:"questions,omitempty"`
	FinalReportPath string            `json:"final_report_path,omitempty"`
	Errors          Log               `json:"errors"`
	TaskID          string            `json:"task_id"`
	StartedAt       time.Time         `json:"started_at"`
	AgentTrace      Log               `json:"agent_trace"`
}

// New builds the initial state for a run.
func New(documentID, documentPath, taskID string, questions []string) AgentState {
	qs := make([]string, len(questions))
	copy(qs, questions)
	return AgentState{
		DocumentID:   documentID,
		DocumentPath: documentPath,
		TaskID:       taskID,
		Questions:    qs,
		StartedAt:    time.Now().UTC(),
		Errors:       Log{},
		AgentTrace:   Log{},
	}
}

// WithError returns s with msg appended to Errors.
func (s AgentState) WithError(msg string) AgentState {
	s.Errors = s.Errors.Append(msg)
	return s
}

// WithTrace returns s with entry appended to AgentTrace.
func (s AgentState) WithTrace(entry string) AgentState {
	s.AgentTrace = s.AgentTrace.Append(entry)
	return s
}

// HasQuestions reports whether QA should run.
func (s AgentState) HasQuestions() bool {
	return len(s.Questions) > 0
}

// FullText joins chunk contents the way downstream agents consume them.
func (s AgentState) FullText() string {
	n := 0
	for _, c := range s.Chunks {
		n += len(c.Content) + 2
	}
	buf := make([]byte, 0, n)
	for i, c := range s.Chunks {
		if i > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, c.Content...)
	}
	return string(buf)
}
