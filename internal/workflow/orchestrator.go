// Package workflow wires the agents into the fixed analysis graph.
package workflow

import (
	"context"

	"github.com/jlorenzo681/documind/internal/agents"
	"github.com/jlorenzo681/documind/internal/state"
)

// Agents are the nodes of the analysis graph.
type Agents struct {
	Parser     agents.Agent
	Summarizer agents.Agent
	QA         agents.Agent
	Compliance agents.Agent
	Reporter   agents.Agent
}

// Orchestrator runs parse, summarize, qa, compliance and report in order.
// QA is skipped when there are no questions. A parse that yields no chunks
// and records an error ends the run early.
type Orchestrator struct {
	graph *Graph
}

// NewOrchestrator builds the graph. Every agent must be set.
func NewOrchestrator(a Agents, opts Options) (*Orchestrator, error) {
	g := NewGraph(opts)
	for _, n := range []struct {
		id    string
		agent agents.Agent
	}{
		{agents.NameParser, a.Parser},
		{agents.NameSummarizer, a.Summarizer},
		{agents.NameQA, a.QA},
		{agents.NameCompliance, a.Compliance},
		{agents.NameReporter, a.Reporter},
	} {
		if err := g.Add(n.id, n.agent); err != nil {
			return nil, err
		}
	}
	if err := g.StartAt(agents.NameParser); err != nil {
		return nil, err
	}

	edges := []Edge{
		{From: agents.NameParser, To: End, When: ParseFailed},
		{From: agents.NameParser, To: agents.NameSummarizer},
		{From: agents.NameSummarizer, To: agents.NameQA, When: state.AgentState.HasQuestions},
		{From: agents.NameSummarizer, To: agents.NameCompliance},
		{From: agents.NameQA, To: agents.NameCompliance},
		{From: agents.NameCompliance, To: agents.NameReporter},
		{From: agents.NameReporter, To: End},
	}
	for _, e := range edges {
		if err := g.Connect(e.From, e.To, e.When); err != nil {
			return nil, err
		}
	}
	return &Orchestrator{graph: g}, nil
}

// ParseFailed reports whether parsing produced nothing to analyze.
func ParseFailed(s state.AgentState) bool {
	return len(s.Chunks) == 0 && s.Errors.Len() > 0
}

// Run executes the graph for s. Agent failures are recorded in the returned
// state. An error means the run itself could not finish.
func (o *Orchestrator) Run(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	return o.graph.Run(ctx, s.TaskID, s)
}
