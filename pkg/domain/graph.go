package domain

// Graph is an immutable-after-validation workflow definition: nodes keyed
// by ID plus ordered outgoing transitions per node.
type Graph struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Start string `json:"start" yaml:"start"`

	Nodes map[string]*Node `json:"nodes" yaml:"nodes"`

	// Transitions preserves declaration order per source node. Order matters:
	// the engine picks the first transition whose condition holds.
	Transitions map[string][]Transition `json:"transitions" yaml:"transitions"`
}

// NewGraph returns an empty graph ready for construction.
func NewGraph(name string) *Graph {
	return &Graph{
		Name:        name,
		Nodes:       make(map[string]*Node),
		Transitions: make(map[string][]Transition),
	}
}

// AddNode registers a node, rejecting duplicates and missing IDs.
func (g *Graph) AddNode(n *Node) error {
	if n == nil || n.ID == "" {
		return &DefinitionError{Reason: "node is nil or has empty id"}
	}
	if _, exists := g.Nodes[n.ID]; exists {
		return &DefinitionError{NodeID: n.ID, Reason: "duplicate node id"}
	}
	g.Nodes[n.ID] = n
	return nil
}

// AddTransition appends an outgoing edge, checking reference integrity.
func (g *Graph) AddTransition(t Transition) error {
	if _, ok := g.Nodes[t.From]; !ok {
		return &DefinitionError{NodeID: t.From, Reason: "transition from unknown node"}
	}
	if len(t.To) == 0 {
		return &DefinitionError{NodeID: t.From, Reason: "transition has no target"}
	}
	for _, to := range t.To {
		if _, ok := g.Nodes[to]; !ok {
			return &DefinitionError{NodeID: to, Reason: "transition to unknown node"}
		}
	}
	g.Transitions[t.From] = append(g.Transitions[t.From], t)
	return nil
}

// Outgoing returns the ordered transitions leaving the given node.
func (g *Graph) Outgoing(id string) []Transition {
	return g.Transitions[id]
}

// NodeIDs returns all node IDs. Order is unspecified.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	return ids
}
