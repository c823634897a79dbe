// Package observability fans lifecycle events out to registered observers
// and ships two ready-made observers: structured logging (slog) and
// Prometheus metrics.
package observability

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Dispatcher delivers events to zero or more observers, in registration
// order. Emit is safe for concurrent use; parallel siblings emit from
// separate goroutines.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []domain.Observer
}

// NewDispatcher creates a dispatcher with the given initial observers.
func NewDispatcher(observers ...domain.Observer) *Dispatcher {
	return &Dispatcher{observers: observers}
}

// Register appends an observer.
func (d *Dispatcher) Register(obs domain.Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, obs)
}

// Emit delivers the event to every observer.
func (d *Dispatcher) Emit(ctx context.Context, ev domain.Event) {
	d.mu.RLock()
	observers := d.observers
	d.mu.RUnlock()

	for _, obs := range observers {
		obs.OnEvent(ctx, ev)
	}
}

// NewSlogObserver logs every lifecycle event through the given logger.
// Workflow events log at Info, node events at Debug, failures at Error.
func NewSlogObserver(logger *slog.Logger) domain.Observer {
	return domain.ObserverFunc(func(ctx context.Context, ev domain.Event) {
		attrs := []any{"run", ev.RunID}
		if ev.Workflow != "" {
			attrs = append(attrs, "workflow", ev.Workflow)
		}
		if ev.NodeID != "" {
			attrs = append(attrs, "node", ev.NodeID)
		}
		if ev.Attempts > 0 {
			attrs = append(attrs, "attempts", ev.Attempts)
		}
		if ev.Elapsed > 0 {
			attrs = append(attrs, "elapsed", ev.Elapsed)
		}

		switch ev.Type {
		case domain.EventWorkflowFailed, domain.EventNodeFailed:
			attrs = append(attrs, "err", ev.Err)
			logger.ErrorContext(ctx, string(ev.Type), attrs...)
		case domain.EventWorkflowStarted, domain.EventWorkflowCompleted:
			logger.InfoContext(ctx, string(ev.Type), attrs...)
		default:
			logger.DebugContext(ctx, string(ev.Type), attrs...)
		}
	})
}
