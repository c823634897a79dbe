package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrRunCancelled is returned when a run is aborted by context cancellation.
var ErrRunCancelled = errors.New("run cancelled")

// ErrRunNotFound is returned by run stores for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// DefinitionError reports an invalid graph construction operation, raised
// at build time (duplicate id, reference to an undeclared node).
type DefinitionError struct {
	NodeID string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("graph definition error: %s", e.Reason)
	}
	return fmt.Sprintf("graph definition error: node %q: %s", e.NodeID, e.Reason)
}

// NodeExecutionError wraps the underlying behavior error after all retries
// are exhausted.
type NodeExecutionError struct {
	NodeID   string
	Attempts int
	Cause    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed after %d attempt(s): %v", e.NodeID, e.Attempts, e.Cause)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Cause
}

// NodeTimeoutError reports a single attempt exceeding the node's timeout.
// A timeout aborts the node immediately; remaining retries are not spent.
type NodeTimeoutError struct {
	NodeID  string
	Attempt int
	Timeout time.Duration
}

func (e *NodeTimeoutError) Error() string {
	return fmt.Sprintf("node %q timed out after %s (attempt %d)", e.NodeID, e.Timeout, e.Attempt)
}
