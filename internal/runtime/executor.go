package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/arbor/pkg/domain"
)

// executeGroup runs one frontier group. A single node runs inline; a
// parallel group starts every sibling before awaiting any, then joins all
// of them (fan-out/fan-in barrier). On sibling failure the join still
// completes, so in-flight siblings finish, and the first error is surfaced.
//
// The returned slice is index-aligned with the group; entries may be nil
// when input resolution failed before invocation.
func (e *Engine) executeGroup(ctx context.Context, g *domain.Graph, group frontierGroup, rctx domain.Context, runID string) ([]*domain.NodeResult, error) {
	results := make([]*domain.NodeResult, len(group))

	if len(group) == 1 {
		node := g.Nodes[group[0]]
		inputs, err := e.resolver.Resolve(node, rctx)
		if err != nil {
			e.emitNodeFailed(ctx, runID, g.Name, node.ID, 0, 0, err)
			return results, err
		}
		res, err := e.invokeWithRetry(ctx, g, node, inputs, rctx, runID)
		results[0] = res
		return results, err
	}

	// Resolve all sibling inputs before launching any of them: resolution
	// reads the shared context, which must not be read while a sibling
	// merge could write it.
	inputs := make([]map[string]any, len(group))
	for i, id := range group {
		resolved, err := e.resolver.Resolve(g.Nodes[id], rctx)
		if err != nil {
			e.emitNodeFailed(ctx, runID, g.Name, id, 0, 0, err)
			return results, err
		}
		inputs[i] = resolved
	}

	var eg errgroup.Group
	for i, id := range group {
		node := g.Nodes[id]
		in := inputs[i]
		idx := i
		eg.Go(func() error {
			res, err := e.invokeWithRetry(ctx, g, node, in, rctx, runID)
			results[idx] = res
			return err
		})
	}
	return results, eg.Wait()
}

// invokeWithRetry wraps one node invocation in the retry/timeout policy:
// up to retries+1 attempts with the node's delay between them. A timed-out
// attempt aborts the node immediately without spending remaining retries.
func (e *Engine) invokeWithRetry(ctx context.Context, g *domain.Graph, node *domain.Node, inputs map[string]any, rctx domain.Context, runID string) (*domain.NodeResult, error) {
	e.emit(ctx, domain.Event{
		Type:     domain.EventNodeStarted,
		RunID:    runID,
		Workflow: g.Name,
		NodeID:   node.ID,
	})

	attempts := node.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := e.invokeOnce(ctx, node, inputs, rctx)
		if err == nil {
			res := &domain.NodeResult{
				NodeID:   node.ID,
				Status:   domain.StatusSucceeded,
				Value:    value,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}
			e.emit(ctx, domain.Event{
				Type:     domain.EventNodeCompleted,
				RunID:    runID,
				Workflow: g.Name,
				NodeID:   node.ID,
				Attempts: attempt,
				Elapsed:  res.Elapsed,
				Payload:  value,
			})
			return res, nil
		}

		if ctx.Err() != nil {
			wrapped := fmt.Errorf("node %q: %w", node.ID, domain.ErrRunCancelled)
			e.emitNodeFailed(ctx, runID, g.Name, node.ID, attempt, time.Since(start), wrapped)
			return &domain.NodeResult{
				NodeID:   node.ID,
				Status:   domain.StatusCancelled,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}, wrapped
		}

		if errors.Is(err, context.DeadlineExceeded) {
			timeoutErr := &domain.NodeTimeoutError{
				NodeID:  node.ID,
				Attempt: attempt,
				Timeout: node.Timeout,
			}
			e.emitNodeFailed(ctx, runID, g.Name, node.ID, attempt, time.Since(start), timeoutErr)
			return &domain.NodeResult{
				NodeID:   node.ID,
				Status:   domain.StatusTimedOut,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}, timeoutErr
		}

		lastErr = err
		e.logger.Debug("node attempt failed", "run", runID, "node", node.ID, "attempt", attempt, "err", err)

		if attempt < attempts {
			if err := sleepCtx(ctx, node.Delay); err != nil {
				wrapped := fmt.Errorf("node %q: %w", node.ID, domain.ErrRunCancelled)
				e.emitNodeFailed(ctx, runID, g.Name, node.ID, attempt, time.Since(start), wrapped)
				return &domain.NodeResult{
					NodeID:   node.ID,
					Status:   domain.StatusCancelled,
					Attempts: attempt,
					Elapsed:  time.Since(start),
				}, wrapped
			}
		}
	}

	execErr := &domain.NodeExecutionError{
		NodeID:   node.ID,
		Attempts: attempts,
		Cause:    lastErr,
	}
	e.emitNodeFailed(ctx, runID, g.Name, node.ID, attempts, time.Since(start), execErr)
	return &domain.NodeResult{
		NodeID:   node.ID,
		Status:   domain.StatusFailed,
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}, execErr
}

// invokeOnce runs a single attempt, bounded by the node's timeout.
func (e *Engine) invokeOnce(ctx context.Context, node *domain.Node, inputs map[string]any, rctx domain.Context) (any, error) {
	attemptCtx := ctx
	if node.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, node.Timeout)
		defer cancel()
	}
	return e.catalog.Invoke(attemptCtx, node, inputs, rctx)
}

func (e *Engine) emitNodeFailed(ctx context.Context, runID, workflow, nodeID string, attempts int, elapsed time.Duration, err error) {
	e.emit(ctx, domain.Event{
		Type:     domain.EventNodeFailed,
		RunID:    runID,
		Workflow: workflow,
		NodeID:   nodeID,
		Attempts: attempts,
		Elapsed:  elapsed,
		Err:      err,
	})
}

// sleepCtx waits for d, aborting early if the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
