package catalog

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
)

// FunctionBehavior calls a named host function from the registry.
type FunctionBehavior struct {
	Registry *registry.Registry
}

// Invoke implements Behavior.
func (b *FunctionBehavior) Invoke(ctx context.Context, node *domain.Node, inputs map[string]any, _ domain.Context) (any, error) {
	if node.Function == nil {
		return nil, fmt.Errorf("node %q: missing function config", node.ID)
	}
	return b.Registry.Call(ctx, node.Function.Name, inputs)
}

// GeneratorBehavior delegates to the text-generation collaborator.
// Prompts are rendered with the node's resolved inputs first, so a prompt
// can reference parameters the resolver produced.
type GeneratorBehavior struct {
	Generator ports.Generator
	Renderer  ports.TemplateRenderer
}

// Invoke implements Behavior.
func (b *GeneratorBehavior) Invoke(ctx context.Context, node *domain.Node, inputs map[string]any, _ domain.Context) (any, error) {
	if node.Generator == nil {
		return nil, fmt.Errorf("node %q: missing generator config", node.ID)
	}
	if b.Generator == nil {
		return nil, fmt.Errorf("node %q: no generator collaborator configured", node.ID)
	}

	system, err := b.renderPrompt(ctx, node.Generator.SystemPrompt, inputs)
	if err != nil {
		return nil, fmt.Errorf("node %q: system prompt: %w", node.ID, err)
	}
	user, err := b.renderPrompt(ctx, node.Generator.UserPrompt, inputs)
	if err != nil {
		return nil, fmt.Errorf("node %q: user prompt: %w", node.ID, err)
	}

	return b.Generator.Generate(ctx, system, user, node.Generator.Params)
}

func (b *GeneratorBehavior) renderPrompt(ctx context.Context, source string, inputs map[string]any) (string, error) {
	if source == "" || b.Renderer == nil {
		return source, nil
	}
	return b.Renderer.Render(ctx, source, inputs)
}

// TemplateBehavior delegates to the template-rendering collaborator with
// the resolved inputs as bindings.
type TemplateBehavior struct {
	Renderer ports.TemplateRenderer
}

// Invoke implements Behavior.
func (b *TemplateBehavior) Invoke(ctx context.Context, node *domain.Node, inputs map[string]any, _ domain.Context) (any, error) {
	if node.Template == nil {
		return nil, fmt.Errorf("node %q: missing template config", node.ID)
	}
	if b.Renderer == nil {
		return nil, fmt.Errorf("node %q: no template renderer configured", node.ID)
	}
	return b.Renderer.Render(ctx, node.Template.Source, inputs)
}

// SubWorkflowBehavior recursively executes an embedded graph.
type SubWorkflowBehavior struct {
	Run Invoker
}

// Invoke implements Behavior.
//
// With a context mapping, the inner run starts from a fresh context seeded
// by mapping (inner key <- outer key) and the inner final context is the
// node's result. Without one, the inner graph runs directly against the
// outer context, so its writes are visible there as they happen. A node in
// shared mode must not be a parallel sibling; validation rejects that
// shape, since two shared inner runs would write one map concurrently.
func (b *SubWorkflowBehavior) Invoke(ctx context.Context, node *domain.Node, inputs map[string]any, rctx domain.Context) (any, error) {
	if node.SubWorkflow == nil || node.SubWorkflow.Graph == nil {
		return nil, fmt.Errorf("node %q: missing sub-workflow config", node.ID)
	}
	if b.Run == nil {
		return nil, fmt.Errorf("node %q: no sub-workflow invoker configured", node.ID)
	}

	cfg := node.SubWorkflow
	if len(cfg.ContextMapping) == 0 {
		_, err := b.Run(ctx, cfg.Graph, rctx)
		return nil, err
	}

	inner := make(domain.Context, len(cfg.ContextMapping))
	for innerKey, outerKey := range cfg.ContextMapping {
		if v, ok := rctx[outerKey]; ok {
			inner[innerKey] = v
		}
	}
	// Resolved inputs seed the inner context too, overriding mapped keys.
	for param, v := range inputs {
		inner[param] = v
	}

	final, err := b.Run(ctx, cfg.Graph, inner)
	if err != nil {
		return nil, err
	}
	return map[string]any(final), nil
}

// Default builds a catalog with all four kinds registered.
func Default(reg *registry.Registry, gen ports.Generator, renderer ports.TemplateRenderer, run Invoker) *Catalog {
	c := New()
	c.Register(domain.KindFunction, &FunctionBehavior{Registry: reg})
	c.Register(domain.KindGenerator, &GeneratorBehavior{Generator: gen, Renderer: renderer})
	c.Register(domain.KindTemplate, &TemplateBehavior{Renderer: renderer})
	c.Register(domain.KindSubWorkflow, &SubWorkflowBehavior{Run: run})
	return c
}
