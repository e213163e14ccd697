// Package metrics holds the OpenTelemetry instruments recorded by the bot.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Outcome labels for finished generations.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
)

// Recorder records bot activity. All methods are safe for concurrent use.
type Recorder struct {
	updates            metric.Int64Counter
	generationRequests metric.Int64Counter
	generationOutcomes metric.Int64Counter
	generationDuration metric.Float64Histogram
	pollAttempts       metric.Int64Counter
	persistenceErrors  metric.Int64Counter
}

// New creates the instruments on the given meter
func New(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	r.updates, err = meter.Int64Counter("mediabot.updates.total",
		metric.WithDescription("Total number of updates routed, by update kind and route."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create updates counter: %w", err)
	}

	r.generationRequests, err = meter.Int64Counter("mediabot.generation.requests.total",
		metric.WithDescription("Total number of video generation jobs started."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation requests counter: %w", err)
	}

	r.generationOutcomes, err = meter.Int64Counter("mediabot.generation.outcome.total",
		metric.WithDescription("Total number of finished video generation jobs, by outcome."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation outcome counter: %w", err)
	}

	r.generationDuration, err = meter.Float64Histogram("mediabot.generation.duration_seconds",
		metric.WithDescription("Time from submission to delivery of a video generation job."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation duration histogram: %w", err)
	}

	r.pollAttempts, err = meter.Int64Counter("mediabot.poll.attempts.total",
		metric.WithDescription("Total number of status polls sent to generation backends."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll attempts counter: %w", err)
	}

	r.persistenceErrors, err = meter.Int64Counter("mediabot.persistence.errors.total",
		metric.WithDescription("Total number of swallowed persistence failures."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence errors counter: %w", err)
	}

	return r, nil
}

// NewNop returns a Recorder whose instruments discard everything
func NewNop() *Recorder {
	r, _ := New(noop.NewMeterProvider().Meter("mediabot"))
	return r
}

// UpdateRouted counts one routed update
func (r *Recorder) UpdateRouted(ctx context.Context, kind, route string) {
	r.updates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("route", route),
	))
}

// GenerationStarted counts a job handed to a backend
func (r *Recorder) GenerationStarted(ctx context.Context, backend, workflow string) {
	r.generationRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("workflow", workflow),
	))
}

// GenerationFinished counts a finished job and records its duration
func (r *Recorder) GenerationFinished(ctx context.Context, backend, workflow, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("workflow", workflow),
		attribute.String("outcome", outcome),
	)
	r.generationOutcomes.Add(ctx, 1, attrs)
	r.generationDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// PollAttempt counts one status poll
func (r *Recorder) PollAttempt(ctx context.Context, backend string) {
	r.pollAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

// PersistenceFailed counts a swallowed storage error
func (r *Recorder) PersistenceFailed(ctx context.Context, op string) {
	r.persistenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
