package stubs

import (
	"context"
	"errors"
	"sync"

	"mediabot/internal/jobs"
)

// Backend is a scripted jobs.Backend. Each Status call returns the next
// scripted status; the last one repeats once the script is exhausted.
type Backend struct {
	mu        sync.Mutex
	name      string
	TaskID    string
	SubmitErr error
	StatusErr error
	Script    []jobs.Status

	submitted []jobs.SubmitParams
	polls     int
}

// NewBackend creates a backend that accepts every submission as task-1
func NewBackend(name string, script ...jobs.Status) *Backend {
	return &Backend{name: name, TaskID: "task-1", Script: script}
}

// Succeeding returns a script of n running polls followed by success
func Succeeding(n int, resultURL string) []jobs.Status {
	script := make([]jobs.Status, 0, n+1)
	for i := 0; i < n; i++ {
		script = append(script, jobs.Status{State: jobs.StateRunning})
	}
	return append(script, jobs.Status{State: jobs.StateSucceeded, ResultURL: resultURL})
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Submit(ctx context.Context, params jobs.SubmitParams) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, params)
	if b.SubmitErr != nil {
		return "", b.SubmitErr
	}
	return b.TaskID, nil
}

func (b *Backend) Status(ctx context.Context, taskID string) (jobs.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls++
	if b.StatusErr != nil {
		return jobs.Status{}, b.StatusErr
	}
	if len(b.Script) == 0 {
		return jobs.Status{}, errors.New("no scripted status")
	}
	idx := b.polls - 1
	if idx >= len(b.Script) {
		idx = len(b.Script) - 1
	}
	st := b.Script[idx]
	st.TaskID = taskID
	return st, nil
}

// Polls returns how many Status calls were made
func (b *Backend) Polls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls
}

// Submitted returns every accepted submission
func (b *Backend) Submitted() []jobs.SubmitParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]jobs.SubmitParams(nil), b.submitted...)
}
