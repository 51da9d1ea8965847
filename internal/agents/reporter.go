package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/jlorenzo681/documind/internal/state"
)

// DefaultReportDir is where reports land when no directory is configured.
const DefaultReportDir = "/tmp/documind/reports"

const (
	maxReportKeyPoints = 10
	maxReportIssues    = 15
	bodyLineHeight     = 5.5
)

var riskColors = map[string][3]int{
	"low":    {0, 128, 0},
	"medium": {255, 165, 0},
	"high":   {255, 0, 0},
}

// Reporter renders the accumulated analysis to a PDF file.
type Reporter struct {
	Dir string
}

func (a *Reporter) Name() string { return NameReporter }

func (a *Reporter) Execute(ctx context.Context, s state.AgentState) state.AgentState {
	return observe(ctx, NameReporter, s, a.report)
}

func (a *Reporter) report(ctx context.Context, s state.AgentState) (out state.AgentState) {
	s = trace(s, NameReporter, "Starting report generation")

	defer func() {
		if r := recover(); r != nil {
			out = fail(s, NameReporter, fmt.Sprintf("Report generation failed: %v", r))
		}
	}()

	path, err := a.render(s)
	if err != nil {
		return fail(s, NameReporter, "Report generation failed: "+err.Error())
	}

	s = trace(s, NameReporter, "Report generated: "+filepath.Base(path))
	s.FinalReportPath = path
	return s
}

func (a *Reporter) render(s state.AgentState) (string, error) {
	dir := a.Dir
	if dir == "" {
		dir = DefaultReportDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ts := now().UTC()
	path := filepath.Join(dir, fmt.Sprintf("report_%s_%s.pdf", s.TaskID, ts.Format("20060102_150405")))

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(25.4, 25.4, 25.4)
	pdf.SetAutoPageBreak(true, 25.4)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	heading := func(text string, size float64) {
		pdf.SetFont("Helvetica", "B", size)
		pdf.MultiCell(0, size*0.5, tr(text), "", "L", false)
		pdf.Ln(2)
	}
	body := func(text string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, bodyLineHeight, tr(text), "", "L", false)
	}

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr("DocuMind Analysis Report"), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	heading("Document Information", 16)
	docType := s.DocumentType
	if docType == "" {
		docType = "Unknown"
	}
	for _, row := range [][2]string{
		{"Document ID:", s.DocumentID},
		{"Task ID:", s.TaskID},
		{"Document Type:", docType},
		{"Generated:", ts.Format("2006-01-02 15:04:05") + " UTC"},
	} {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, bodyLineHeight+1, tr(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, bodyLineHeight+1, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	if sum := s.Summary; sum != nil {
		heading("Executive Summary", 16)
		exec := sum.ExecutiveSummary
		if strings.TrimSpace(exec) == "" {
			exec = "No summary available"
		}
		body(exec)
		pdf.Ln(4)

		if len(sum.KeyPoints) > 0 {
			heading("Key Points", 13)
			for _, p := range limit(sum.KeyPoints, maxReportKeyPoints) {
				body("• " + p)
			}
			pdf.Ln(4)
		}
	}

	if c := s.Compliance; c != nil {
		heading("Compliance Analysis", 16)
		rgb, ok := riskColors[c.RiskLevel]
		if !ok {
			rgb = [3]int{128, 128, 128}
		}
		level := c.RiskLevel
		if level == "" {
			level = "unknown"
		}
		pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, bodyLineHeight+1, tr(fmt.Sprintf("Overall Risk: %s (Score: %g/100)", strings.ToUpper(level), c.OverallRiskScore)), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(4)

		if len(c.Issues) > 0 {
			heading("Issues Found", 13)
			for _, is := range limit(c.Issues, maxReportIssues) {
				sev := is.Severity
				if sev == "" {
					sev = "unknown"
				}
				body(fmt.Sprintf("• [%s] %s", strings.ToUpper(sev), is.Description))
			}
			pdf.Ln(4)
		}
		if len(c.Recommendations) > 0 {
			heading("Recommendations", 13)
			for _, r := range c.Recommendations {
				body("• " + r)
			}
		}
	}

	if len(s.QAResults) > 0 {
		pdf.Ln(6)
		heading("Questions & Answers", 16)
		for _, qa := range s.QAResults {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.MultiCell(0, bodyLineHeight, tr("Q: "+qa.Question), "", "L", false)
			body("A: " + qa.Answer)
			pdf.Ln(3)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", err
	}
	return path, nil
}

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
