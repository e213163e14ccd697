// Package jobs drives long-running remote generation tasks from submission
// to a terminal state.
package jobs

import "context"

// State is the normalized lifecycle state of a remote job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// IsTerminal reports whether no further transitions are expected.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Status is a snapshot of a remote job.
type Status struct {
	TaskID        string
	State         State
	ResultURL     string
	FailureReason string
}

// SubmitParams describes a generation request. SourceURL is empty for
// text-only generation.
type SubmitParams struct {
	Prompt    string
	SourceURL string
}

// Backend is a remote asynchronous generation service.
type Backend interface {
	Name() string
	Submit(ctx context.Context, params SubmitParams) (string, error)
	Status(ctx context.Context, taskID string) (Status, error)
}
