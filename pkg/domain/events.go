package domain

import (
	"context"
	"time"
)

// EventType categorizes lifecycle events.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventWorkflowFailed    EventType = "workflow_failed"
	EventNodeStarted       EventType = "node_started"
	EventNodeCompleted     EventType = "node_completed"
	EventNodeFailed        EventType = "node_failed"
)

// Event is a typed lifecycle notification. Node fields are only set on
// node-level events; Err only on failure events.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Workflow  string        `json:"workflow,omitempty"`
	NodeID    string        `json:"node_id,omitempty"`
	Attempts  int           `json:"attempts,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
	Err       error         `json:"-"`
	Payload   any           `json:"payload,omitempty"`
}

// Observer receives lifecycle events. Implementations must be safe for
// concurrent use: parallel siblings emit from separate goroutines.
type Observer interface {
	OnEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}
