// Package runtime is the workflow engine core: it advances an execution
// frontier through a validated graph, resolving inputs, invoking node
// behaviors with retry/timeout policy, merging outputs into the shared
// context, and emitting lifecycle events.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/catalog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
)

// Engine executes validated graphs. It holds no per-run state: a single
// Engine may serve many concurrent runs.
type Engine struct {
	catalog    *catalog.Catalog
	dispatcher *observability.Dispatcher
	resolver   *Resolver
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDispatcher sets the lifecycle event dispatcher.
func WithDispatcher(d *observability.Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// NewEngine creates an engine backed by the given node catalog.
func NewEngine(cat *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog:  cat,
		resolver: NewResolver(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dispatcher == nil {
		e.dispatcher = observability.NewDispatcher()
	}
	return e
}

// Run executes the graph against a fresh context seeded with the caller's
// initial values and returns the final context.
func (e *Engine) Run(ctx context.Context, g *domain.Graph, seed domain.Context) (domain.Context, error) {
	if seed == nil {
		seed = domain.Context{}
	}
	return e.RunShared(ctx, g, seed.Clone())
}

// RunShared executes the graph using rctx directly as the live execution
// context. Sub-workflow nodes use this to share the outer context by
// reference.
func (e *Engine) RunShared(ctx context.Context, g *domain.Graph, rctx domain.Context) (domain.Context, error) {
	runID := runIDFrom(ctx)
	log := e.logger.With("run", runID, "workflow", g.Name)

	e.emit(ctx, domain.Event{
		Type:     domain.EventWorkflowStarted,
		RunID:    runID,
		Workflow: g.Name,
	})
	log.Debug("workflow started", "start", g.Start)

	// The frontier is a queue of sibling groups. A group of one executes
	// sequentially; a larger group is a parallel fan-out joined as a unit.
	frontier := []frontierGroup{{g.Start}}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			wrapped := fmt.Errorf("%w: %v", domain.ErrRunCancelled, err)
			e.emitWorkflowFailed(ctx, runID, g.Name, wrapped)
			return nil, wrapped
		}

		group := frontier[0]
		frontier = frontier[1:]

		results, err := e.executeGroup(ctx, g, group, rctx, runID)

		// Merge succeeded siblings in declaration order, then fail if the
		// group failed: siblings already in flight were joined above, and
		// their merges stay visible in the shared context.
		for i, res := range results {
			if res == nil || res.Status != domain.StatusSucceeded {
				continue
			}
			node := g.Nodes[group[i]]
			if node.OutputKey != "" {
				rctx.Merge(node.OutputKey, res.Value)
			}
		}
		if err != nil {
			e.emitWorkflowFailed(ctx, runID, g.Name, err)
			return nil, err
		}

		next, err := e.advance(g, group, rctx)
		if err != nil {
			e.emitWorkflowFailed(ctx, runID, g.Name, err)
			return nil, err
		}
		frontier = append(frontier, next...)
	}

	e.emit(ctx, domain.Event{
		Type:     domain.EventWorkflowCompleted,
		RunID:    runID,
		Workflow: g.Name,
		Payload:  rctx,
	})
	log.Debug("workflow completed")
	return rctx, nil
}

type frontierGroup []string

// advance computes the next frontier groups after a whole group succeeded.
// Each member's outgoing transitions are evaluated in declaration order
// over the current context; the first matching transition wins. Duplicate
// targets across siblings (fan-in on a convergence node) collapse to one.
func (e *Engine) advance(g *domain.Graph, group frontierGroup, rctx domain.Context) ([]frontierGroup, error) {
	var next []frontierGroup
	seen := make(map[string]bool)

	for _, id := range group {
		for _, t := range g.Outgoing(id) {
			if t.Condition != "" {
				ok, err := e.resolver.EvalCondition(t.Condition, rctx)
				if err != nil {
					return nil, fmt.Errorf("transition %s -> %s: %w", id, strings.Join(t.To, ","), err)
				}
				if !ok {
					continue
				}
			}
			key := strings.Join(t.To, "\x00")
			if !seen[key] {
				seen[key] = true
				next = append(next, frontierGroup(t.To))
			}
			break // first match wins
		}
	}
	return next, nil
}

func (e *Engine) emit(ctx context.Context, ev domain.Event) {
	ev.Timestamp = time.Now()
	e.dispatcher.Emit(ctx, ev)
}

func (e *Engine) emitWorkflowFailed(ctx context.Context, runID, workflow string, err error) {
	e.logger.Error("workflow failed", "run", runID, "workflow", workflow, "err", err)
	e.emit(ctx, domain.Event{
		Type:     domain.EventWorkflowFailed,
		RunID:    runID,
		Workflow: workflow,
		Err:      err,
	})
}
