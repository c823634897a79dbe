package domain

// Transition is a directed, optionally conditioned edge.
//
// A single-element To is a sequential step; multiple elements form a
// parallel fan-out whose targets are joined before the frontier advances.
type Transition struct {
	From string   `json:"from_node" yaml:"from_node"`
	To   []string `json:"to_node" yaml:"to_node"`

	// Condition is an expression over the context that must evaluate to
	// true for the transition to fire. Empty means unconditional.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// IsParallel reports whether the transition fans out to multiple targets.
func (t Transition) IsParallel() bool {
	return len(t.To) > 1
}
