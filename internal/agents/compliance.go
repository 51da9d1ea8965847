package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jlorenzo681/documind/internal/llm"
	"github.com/jlorenzo681/documind/internal/state"
)

const (
	complianceTemperature = 0.1
	complianceMaxRunes    = 15000
	maxRiskScore          = 100
)

var (
	gdprKeywords = []string{
		"data retention",
		"personal data",
		"data processing",
		"consent",
		"data subject rights",
		"data protection officer",
		"privacy policy",
	}
	contractRiskKeywords = []string{
		"unlimited liability",
		"automatic renewal",
		"unilateral modification",
		"exclusive jurisdiction",
		"waiver of rights",
		"non-compete",
		"confidentiality breach",
	}
	requiredClauses = []string{
		"termination",
		"dispute resolution",
		"force majeure",
		"indemnification",
		"limitation of liability",
	}

	severityWeights = map[string]float64{"high": 30, "medium": 15, "low": 5}
)

// Compliance flags contract and data-protection risks and scores them.
type Compliance struct {
	LLM llm.Client
}

func (a *Compliance) Name() string { return NameCompliance }

func (a *Compliance) Execute(ctx context.Context, s state.AgentState) state.AgentState {
	return observe(ctx, NameCompliance, s, a.check)
}

func (a *Compliance) check(ctx context.Context, s state.AgentState) state.AgentState {
	s = trace(s, NameCompliance, "Starting compliance analysis")

	text := s.FullText()
	issues, err := a.detect(ctx, text)
	if err != nil {
		s = fail(s, NameCompliance, "Compliance check failed: "+err.Error())
	}
	score, level := RiskScore(issues)

	report := &state.ComplianceReport{
		OverallRiskScore: score,
		RiskLevel:        level,
		Issues:           issues,
		Recommendations:  Recommendations(issues),
		ClausesAnalyzed:  len(s.Chunks),
	}

	s = trace(s, NameCompliance, fmt.Sprintf("Compliance check completed: %s risk (%g)", level, score))
	s.Compliance = report
	return s
}

// detect asks the model for issues. Keyword detection stands in when there
// is no model, the call fails or the answer is not a JSON array; only the
// failed call is reported as an error.
func (a *Compliance) detect(ctx context.Context, text string) ([]state.ComplianceIssue, error) {
	if a.LLM == nil {
		return KeywordIssues(text), nil
	}
	resp, err := a.LLM.Complete(ctx, llm.Request{
		System:      complianceSystemPrompt(),
		User:        truncateRunes(text, complianceMaxRunes),
		Temperature: complianceTemperature,
		Complexity:  llm.Complex,
	})
	if err != nil {
		return KeywordIssues(text), err
	}
	var issues []state.ComplianceIssue
	if err := json.Unmarshal([]byte(llm.StripFences(resp.Text)), &issues); err != nil || issues == nil {
		return KeywordIssues(text), nil
	}
	return issues, nil
}

// KeywordIssues is the deterministic detector used when the model is
// unavailable or its answer cannot be parsed.
func KeywordIssues(text string) []state.ComplianceIssue {
	lower := strings.ToLower(text)
	issues := []state.ComplianceIssue{}

	for _, kw := range contractRiskKeywords {
		if strings.Contains(lower, kw) {
			issues = append(issues, state.ComplianceIssue{
				Category:    "contract_risk",
				Severity:    "medium",
				Description: fmt.Sprintf("Document contains '%s' clause", kw),
				Location:    "detected via keyword search",
				Excerpt:     kw,
			})
		}
	}

	if strings.Contains(lower, "agreement") || strings.Contains(lower, "contract") {
		for _, clause := range requiredClauses {
			if !strings.Contains(lower, clause) {
				issues = append(issues, state.ComplianceIssue{
					Category:    "missing_clause",
					Severity:    "low",
					Description: fmt.Sprintf("Missing '%s' clause", clause),
					Location:    "document",
				})
			}
		}
	}
	return issues
}

// RiskScore sums severity weights, capped at 100. Unknown severities weigh as low.
func RiskScore(issues []state.ComplianceIssue) (float64, string) {
	var total float64
	for _, is := range issues {
		w, ok := severityWeights[strings.ToLower(is.Severity)]
		if !ok {
			w = severityWeights["low"]
		}
		total += w
	}
	total = min(total, maxRiskScore)

	switch {
	case total >= 60:
		return total, "high"
	case total >= 30:
		return total, "medium"
	default:
		return total, "low"
	}
}

// Recommendations depends only on which categories are present.
func Recommendations(issues []state.ComplianceIssue) []string {
	present := map[string]bool{}
	for _, is := range issues {
		present[is.Category] = true
	}

	var out []string
	if present["gdpr"] {
		out = append(out,
			"Review data protection clauses with legal counsel",
			"Ensure GDPR compliance documentation is complete")
	}
	if present["contract_risk"] {
		out = append(out,
			"Negotiate high-risk clauses before signing",
			"Consider adding liability caps and limitations")
	}
	if present["missing_clause"] {
		out = append(out, "Add standard protective clauses before finalizing")
	}
	if len(out) == 0 {
		out = append(out, "Document appears compliant - standard review recommended")
	}
	return out
}

func complianceSystemPrompt() string {
	return compliancePrompt + "\n\nData protection terms to watch for: " + strings.Join(gdprKeywords, ", ") + "."
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
