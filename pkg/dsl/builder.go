package dsl

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Arm is one conditioned branch target.
type Arm struct {
	To   string
	When string
}

// BranchOption tweaks a Branch call.
type BranchOption func(*branchSpec)

type branchSpec struct {
	defaultTo string
	next      string
}

// WithDefault names the arm taken when no condition matches.
// Without it, the first arm's target is the default.
func WithDefault(id string) BranchOption {
	return func(s *branchSpec) {
		s.defaultTo = id
	}
}

// WithNext converges every branch arm onto the given node immediately,
// instead of leaving the arms open for the next Then call.
func WithNext(id string) BranchOption {
	return func(s *branchSpec) {
		s.next = id
	}
}

// Builder assembles a workflow graph.
type Builder struct {
	name        string
	start       string
	nodes       map[string]*NodeBuilder
	order       []string
	transitions []domain.Transition

	// current holds the head(s) the next flow call attaches to.
	current []string
	// open holds unconverged branch arms, recorded as ids. The next Then
	// consumes and clears it.
	open []string

	err error
}

// New creates a builder for a named graph.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Node declares (or revisits) a node definition.
func (b *Builder) Node(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: &domain.Node{
			ID:      id,
			Retries: domain.DefaultRetries,
			Delay:   domain.DefaultDelay,
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Start sets the entry node and makes it the current head.
func (b *Builder) Start(id string) *Builder {
	if b.start != "" {
		b.fail(fmt.Errorf("start already set to %q", b.start))
		return b
	}
	b.start = id
	b.current = []string{id}
	return b
}

// Then appends an unconditional sequential transition from every current
// head to id. If a branch was left unconverged, every open arm also gains
// a transition to id and the pending state is cleared (auto-convergence).
func (b *Builder) Then(id string) *Builder {
	return b.ThenIf(id, "")
}

// ThenIf is Then with a guard condition on the new transition(s).
func (b *Builder) ThenIf(id, condition string) *Builder {
	heads := b.takeHeads()
	if len(heads) == 0 {
		b.fail(fmt.Errorf("then %q: no current node (missing Start?)", id))
		return b
	}
	for _, from := range heads {
		b.transitions = append(b.transitions, domain.Transition{
			From:      from,
			To:        []string{id},
			Condition: condition,
		})
	}
	b.current = []string{id}
	return b
}

// Parallel fans out from the current head to all listed nodes. The engine
// joins the whole group before the frontier advances past it. A following
// Then converges every sibling onto its target.
func (b *Builder) Parallel(ids ...string) *Builder {
	if len(ids) < 2 {
		b.fail(fmt.Errorf("parallel requires at least two targets, got %d", len(ids)))
		return b
	}
	heads := b.takeHeads()
	if len(heads) == 0 {
		b.fail(fmt.Errorf("parallel: no current node (missing Start?)"))
		return b
	}
	for _, from := range heads {
		b.transitions = append(b.transitions, domain.Transition{
			From: from,
			To:   append([]string(nil), ids...),
		})
	}
	b.current = append([]string(nil), ids...)
	return b
}

// Branch registers one conditioned transition per arm from the current
// head, in declaration order (first match wins at runtime), plus a final
// unconditional transition to the default arm. Without WithNext the arm
// targets stay open until the next Then converges them.
func (b *Builder) Branch(arms []Arm, opts ...BranchOption) *Builder {
	if len(arms) == 0 {
		b.fail(fmt.Errorf("branch requires at least one arm"))
		return b
	}
	spec := branchSpec{}
	for _, opt := range opts {
		opt(&spec)
	}
	if spec.defaultTo == "" {
		spec.defaultTo = arms[0].To
	}

	heads := b.takeHeads()
	if len(heads) == 0 {
		b.fail(fmt.Errorf("branch: no current node (missing Start?)"))
		return b
	}

	for _, from := range heads {
		for _, arm := range arms {
			if arm.When == "" {
				b.fail(fmt.Errorf("branch arm %q has no condition", arm.To))
				return b
			}
			b.transitions = append(b.transitions, domain.Transition{
				From:      from,
				To:        []string{arm.To},
				Condition: arm.When,
			})
		}
		b.transitions = append(b.transitions, domain.Transition{
			From: from,
			To:   []string{spec.defaultTo},
		})
	}

	// Unique arm targets in declaration order; the default arm counts.
	targets := make([]string, 0, len(arms)+1)
	seen := make(map[string]bool, len(arms)+1)
	for _, arm := range arms {
		if !seen[arm.To] {
			seen[arm.To] = true
			targets = append(targets, arm.To)
		}
	}
	if !seen[spec.defaultTo] {
		targets = append(targets, spec.defaultTo)
	}

	if spec.next != "" {
		for _, target := range targets {
			b.transitions = append(b.transitions, domain.Transition{
				From: target,
				To:   []string{spec.next},
			})
		}
		b.current = []string{spec.next}
		b.open = nil
		return b
	}

	b.current = nil
	b.open = targets
	return b
}

// SubWorkflow declares a sub-workflow node and appends it sequentially,
// like Then.
func (b *Builder) SubWorkflow(id string, inner *domain.Graph, mapping map[string]string) *Builder {
	b.Node(id).SubWorkflow(inner, mapping)
	return b.Then(id)
}

// Build compiles the recorded nodes and transitions into a graph.
// Reference errors (transition to an undeclared node, duplicate ids)
// surface here as *domain.DefinitionError.
func (b *Builder) Build() (*domain.Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.start == "" {
		return nil, &domain.DefinitionError{Reason: "no start node declared"}
	}

	g := domain.NewGraph(b.name)
	g.Start = b.start
	for _, id := range b.order {
		if err := g.AddNode(b.nodes[id].node); err != nil {
			return nil, err
		}
	}
	if _, ok := g.Nodes[b.start]; !ok {
		return nil, &domain.DefinitionError{NodeID: b.start, Reason: "start node is not declared"}
	}
	for _, t := range b.transitions {
		if err := g.AddTransition(t); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// takeHeads returns the nodes the next flow call attaches to: the current
// head(s) plus any open branch arms, consuming the pending-branch state.
func (b *Builder) takeHeads() []string {
	heads := append([]string(nil), b.current...)
	heads = append(heads, b.open...)
	b.open = nil
	return heads
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
