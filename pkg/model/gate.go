package model

import "time"

// GateResult is the outcome of evaluating a single promotion gate.
// It is an ephemeral value: it is not persisted beyond the promotion
// audit record.
type GateResult struct {
	Gate    string         `json:"gate"`
	Passed  bool           `json:"passed"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// GateReport aggregates the results of every configured gate. All gates
// are always evaluated; nothing short-circuits on first failure.
type GateReport struct {
	Version     string       `json:"version"`
	Results     []GateResult `json:"results"`
	Passed      bool         `json:"passed"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
}

// Failed returns the results of gates that did not pass.
func (r *GateReport) Failed() []GateResult {
	var out []GateResult
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}
