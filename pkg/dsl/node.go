package dsl

import (
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// NodeBuilder configures a single node fluently.
type NodeBuilder struct {
	node    *domain.Node
	builder *Builder
}

// Function marks the node as a registry function call.
func (n *NodeBuilder) Function(name string) *NodeBuilder {
	n.node.Kind = domain.KindFunction
	n.node.Function = &domain.FunctionConfig{Name: name}
	return n
}

// Generator marks the node as a text-generation call.
func (n *NodeBuilder) Generator(cfg domain.GeneratorConfig) *NodeBuilder {
	n.node.Kind = domain.KindGenerator
	n.node.Generator = &cfg
	return n
}

// Template marks the node as a template-rendering call.
func (n *NodeBuilder) Template(source string) *NodeBuilder {
	n.node.Kind = domain.KindTemplate
	n.node.Template = &domain.TemplateConfig{Source: source}
	return n
}

// SubWorkflow embeds another graph. An empty mapping shares the outer
// context by reference; a non-empty mapping seeds a fresh inner context.
func (n *NodeBuilder) SubWorkflow(g *domain.Graph, mapping map[string]string) *NodeBuilder {
	n.node.Kind = domain.KindSubWorkflow
	n.node.SubWorkflow = &domain.SubWorkflowConfig{Graph: g, ContextMapping: mapping}
	return n
}

// Input binds one parameter to a source.
func (n *NodeBuilder) Input(param string, src domain.InputSource) *NodeBuilder {
	if n.node.Inputs == nil {
		n.node.Inputs = make(map[string]domain.InputSource)
	}
	n.node.Inputs[param] = src
	return n
}

// Inputs binds several parameters at once.
func (n *NodeBuilder) Inputs(m map[string]domain.InputSource) *NodeBuilder {
	for param, src := range m {
		n.Input(param, src)
	}
	return n
}

// Output sets the context key the node's result is merged under.
func (n *NodeBuilder) Output(key string) *NodeBuilder {
	n.node.OutputKey = key
	return n
}

// Retries overrides the retry count (total attempts = retries+1).
func (n *NodeBuilder) Retries(retries int) *NodeBuilder {
	n.node.Retries = retries
	return n
}

// Delay overrides the pause between attempts.
func (n *NodeBuilder) Delay(d time.Duration) *NodeBuilder {
	n.node.Delay = d
	return n
}

// Timeout bounds a single attempt.
func (n *NodeBuilder) Timeout(d time.Duration) *NodeBuilder {
	n.node.Timeout = d
	return n
}

// Parallel marks the node as safe for fan-out groups (informational).
func (n *NodeBuilder) Parallel() *NodeBuilder {
	n.node.Parallelizable = true
	return n
}

// Build returns the underlying domain node. Exposed for advanced usage.
func (n *NodeBuilder) Build() *domain.Node {
	return n.node
}
