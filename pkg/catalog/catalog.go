// Package catalog maps node kinds to their executable behaviors.
//
// Each kind (Function, Generator, Template, SubWorkflow) registers exactly
// one Behavior; the engine invokes nodes through the catalog and wraps the
// call in its retry/timeout policy. Behaviors surface errors unmodified.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Behavior executes one node kind. It receives the node definition, its
// resolved inputs, and the live run context (shared by reference).
type Behavior interface {
	Invoke(ctx context.Context, node *domain.Node, inputs map[string]any, rctx domain.Context) (any, error)
}

// Invoker runs an embedded graph against the given context, using it as
// the live execution context (not a copy). The engine supplies this so the
// sub-workflow behavior can recurse without importing the runtime.
type Invoker func(ctx context.Context, g *domain.Graph, rctx domain.Context) (domain.Context, error)

// Catalog is the kind → behavior registry.
type Catalog struct {
	mu        sync.RWMutex
	behaviors map[domain.Kind]Behavior
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		behaviors: make(map[domain.Kind]Behavior),
	}
}

// Register binds a behavior to a kind, replacing any previous binding.
func (c *Catalog) Register(kind domain.Kind, b Behavior) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.behaviors[kind] = b
}

// Invoke dispatches the node to its kind's behavior.
func (c *Catalog) Invoke(ctx context.Context, node *domain.Node, inputs map[string]any, rctx domain.Context) (any, error) {
	c.mu.RLock()
	b, ok := c.behaviors[node.Kind]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no behavior registered for kind %q", node.Kind)
	}
	return b.Invoke(ctx, node, inputs, rctx)
}
