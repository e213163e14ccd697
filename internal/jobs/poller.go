package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mediabot/internal/apperr"
	"mediabot/internal/metrics"
)

// Poller submits jobs to one backend and waits for them with a fixed
// interval and an attempt bound.
type Poller struct {
	backend     Backend
	maxAttempts int
	interval    time.Duration
	metrics     *metrics.Recorder
	logger      *zap.Logger

	// after is swapped in tests to avoid real sleeps.
	after func(time.Duration) <-chan time.Time
}

// NewPoller creates a poller for backend. maxAttempts below 1 is treated as 1.
func NewPoller(backend Backend, maxAttempts int, interval time.Duration, rec *metrics.Recorder, logger *zap.Logger) *Poller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Poller{
		backend:     backend,
		maxAttempts: maxAttempts,
		interval:    interval,
		metrics:     rec,
		logger:      logger.With(zap.String("backend", backend.Name())),
		after:       time.After,
	}
}

// Backend returns the name of the wrapped backend
func (p *Poller) Backend() string {
	return p.backend.Name()
}

// Submit hands a new job to the backend and returns its task id
func (p *Poller) Submit(ctx context.Context, params SubmitParams) (string, error) {
	taskID, err := p.backend.Submit(ctx, params)
	if err != nil {
		return "", apperr.Remote(p.backend.Name(), err)
	}
	if taskID == "" {
		return "", &apperr.RemoteError{Backend: p.backend.Name(), Message: "backend returned an empty task id"}
	}
	p.logger.Info("Job submitted", zap.String("task_id", taskID))
	return taskID, nil
}

// Poll fetches the current status of a job once
func (p *Poller) Poll(ctx context.Context, taskID string) (Status, error) {
	p.metrics.PollAttempt(ctx, p.backend.Name())
	st, err := p.backend.Status(ctx, taskID)
	if err != nil {
		return Status{}, apperr.Remote(p.backend.Name(), err)
	}
	if st.TaskID == "" {
		st.TaskID = taskID
	}
	return st, nil
}

// WaitUntilTerminal polls taskID until it succeeds or fails, at most
// maxAttempts times, sleeping interval between polls (never after the last).
// onPoll, if set, observes every status received.
//
// A failed job yields a *apperr.RemoteError carrying the backend's reason.
// Exhausting the attempts yields an error wrapping apperr.ErrTimeout.
func (p *Poller) WaitUntilTerminal(ctx context.Context, taskID string, onPoll func(attempt int, st Status)) (Status, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		st, err := p.Poll(ctx, taskID)
		if err != nil {
			return Status{}, err
		}

		p.logger.Debug("Job polled",
			zap.String("task_id", taskID),
			zap.Int("attempt", attempt),
			zap.String("state", string(st.State)),
		)
		if onPoll != nil {
			onPoll(attempt, st)
		}

		switch st.State {
		case StateSucceeded:
			if st.ResultURL == "" {
				return st, &apperr.RemoteError{Backend: p.backend.Name(), Message: "job finished without a result"}
			}
			return st, nil
		case StateFailed:
			reason := st.FailureReason
			if reason == "" {
				reason = "generation failed"
			}
			return st, &apperr.RemoteError{Backend: p.backend.Name(), Message: reason}
		}

		if attempt < p.maxAttempts {
			select {
			case <-ctx.Done():
				return Status{}, ctx.Err()
			case <-p.after(p.interval):
			}
		}
	}

	return Status{}, fmt.Errorf("task %s not finished after %d attempts: %w", taskID, p.maxAttempts, apperr.ErrTimeout)
}
