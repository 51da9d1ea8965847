package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jlorenzo681/documind/internal/agents"
	"github.com/jlorenzo681/documind/internal/state"
)

// End is the terminal pseudo-node.
const End = "__end__"

// DefaultMaxSteps bounds a run when Options.MaxSteps is zero.
const DefaultMaxSteps = 25

// Predicate decides whether an edge is taken for the current state.
type Predicate func(s state.AgentState) bool

// Edge connects two nodes. A nil When always matches. Edges leaving a node are
// evaluated in the order they were added and the first match wins.
type Edge struct {
	From string
	To   string
	When Predicate
}

// Options configures a Graph.
type Options struct {
	MaxSteps int
	Emitter  Emitter
}

// Graph runs agents over a single state, one node at a time.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]agents.Agent
	edges []Edge
	start string
	opts  Options
}

// NewGraph returns an empty graph.
func NewGraph(opts Options) *Graph {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Emitter == nil {
		opts.Emitter = NullEmitter{}
	}
	return &Graph{nodes: map[string]agents.Agent{}, opts: opts}
}

// Add registers a node. IDs must be unique and non-empty.
func (g *Graph) Add(id string, a agents.Agent) error {
	if id == "" || id == End {
		return fmt.Errorf("workflow: invalid node id %q", id)
	}
	if a == nil {
		return fmt.Errorf("workflow: node %s is nil", id)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("workflow: duplicate node %s", id)
	}
	g.nodes[id] = a
	return nil
}

// StartAt sets the entry node.
func (g *Graph) StartAt(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	g.start = id
	return nil
}

// Connect adds an edge. Node existence is checked at run time.
func (g *Graph) Connect(from, to string, when Predicate) error {
	if from == "" || to == "" {
		return fmt.Errorf("workflow: edge endpoints must be set")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, Edge{From: from, To: to, When: when})
	return nil
}

// Run executes from the entry node until End. The context is checked before
// every step. On error the last good state is returned with it.
func (g *Graph) Run(ctx context.Context, runID string, initial state.AgentState) (state.AgentState, error) {
	g.mu.RLock()
	current := g.start
	g.mu.RUnlock()
	if current == "" {
		return initial, fmt.Errorf("workflow: start node not set")
	}

	s := initial
	runStart := time.Now()
	g.opts.Emitter.Emit(Event{RunID: runID, Msg: "run_start", Meta: map[string]any{"document_id": s.DocumentID}})

	for step := 1; ; step++ {
		if step > g.opts.MaxSteps {
			return g.abort(runID, step, current, s, ErrMaxStepsExceeded)
		}
		if err := ctx.Err(); err != nil {
			return g.abort(runID, step, current, s, err)
		}

		g.mu.RLock()
		node, ok := g.nodes[current]
		g.mu.RUnlock()
		if !ok {
			return g.abort(runID, step, current, s, fmt.Errorf("%w: %s", ErrUnknownNode, current))
		}

		started := time.Now()
		errsBefore := s.Errors.Len()
		s = node.Execute(ctx, s)

		meta := map[string]any{
			"duration_ms": time.Since(started).Milliseconds(),
			"new_errors":  s.Errors.Len() - errsBefore,
		}
		if s.Errors.Len() > errsBefore {
			meta["error"] = s.Errors[s.Errors.Len()-1]
		}
		g.opts.Emitter.Emit(Event{RunID: runID, Step: step, NodeID: current, Msg: "node_complete", Meta: meta})

		next := g.next(current, s)
		if next == "" {
			return g.abort(runID, step, current, s, fmt.Errorf("%w: %s", ErrNoRoute, current))
		}
		if next == End {
			g.opts.Emitter.Emit(Event{RunID: runID, Step: step, Msg: "run_complete", Meta: map[string]any{
				"duration_ms": time.Since(runStart).Milliseconds(),
				"errors":      s.Errors.Len(),
			}})
			return s, nil
		}
		current = next
	}
}

func (g *Graph) next(from string, s state.AgentState) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.edges {
		if e.From != from {
			continue
		}
		if e.When == nil || e.When(s) {
			return e.To
		}
	}
	return ""
}

func (g *Graph) abort(runID string, step int, node string, s state.AgentState, err error) (state.AgentState, error) {
	g.opts.Emitter.Emit(Event{RunID: runID, Step: step, NodeID: node, Msg: "run_error", Meta: map[string]any{"error": err.Error()}})
	return s, err
}
