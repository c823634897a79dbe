package domain

import "time"

// NodeStatus is the terminal state of one node execution.
type NodeStatus string

const (
	StatusSucceeded NodeStatus = "succeeded"
	StatusFailed    NodeStatus = "failed"
	StatusTimedOut  NodeStatus = "timed_out"
	StatusCancelled NodeStatus = "cancelled"
)

// NodeResult captures the outcome of executing one node (across all attempts).
type NodeResult struct {
	NodeID   string        `json:"node_id"`
	Status   NodeStatus    `json:"status"`
	Value    any           `json:"value,omitempty"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
}

// RunStatus is the lifecycle state of a whole run.
type RunStatus string

const (
	RunNotStarted RunStatus = "not_started"
	RunRunning    RunStatus = "running"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// RunRecord is the persistable summary of one workflow run.
type RunRecord struct {
	ID         string    `json:"id"`
	Workflow   string    `json:"workflow,omitempty"`
	Status     RunStatus `json:"status"`
	Context    Context   `json:"context,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
