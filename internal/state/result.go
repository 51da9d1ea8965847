package state

// AgentResult is the envelope returned by agent helpers that produce a single
// payload. A failed result never exposes its payload.
type AgentResult struct {
	Success  bool           `json:"success"`
	Payload  any            `json:"data,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Succeeded wraps a payload.
func Succeeded(payload any, meta map[string]any) AgentResult {
	return AgentResult{Success: true, Payload: payload, Metadata: meta}
}

// Failed carries only errors.
func Failed(errs ...string) AgentResult {
	return AgentResult{Success: false, Errors: errs}
}

// Value returns the payload only when the result succeeded.
func (r AgentResult) Value() (any, bool) {
	if !r.Success {
		return nil, false
	}
	return r.Payload, true
}
