package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/repository"
)

// JobTypeGeocodeLocations fills in coordinates after an import.
const JobTypeGeocodeLocations = "geocode_locations"

// Job priorities; higher runs first.
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// GeocodeLocationsPayload lists the locations to geocode, in order.
type GeocodeLocationsPayload struct {
	Targets []domain.GeocodeTarget `json:"targets"`
	Source  string                 `json:"source,omitempty"`
}

// Enqueuer inserts jobs. *repository.Queries satisfies it.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
}

// EnqueueOption adjusts the insert parameters of a job.
type EnqueueOption func(*repository.EnqueueJobParams)

func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.Priority = priority }
}

func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.MaxAttempts = attempts }
}

// WithDelay holds the job back for d.
func WithDelay(d time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.ScheduledAt = p.ScheduledAt.Add(d) }
}

// EnqueueJob encodes payload as JSON and queues it with normal priority and
// three attempts unless opts say otherwise.
func EnqueueJob(ctx context.Context, q Enqueuer, jobType string, payload any, opts ...EnqueueOption) (repository.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("encode %s payload: %w", jobType, err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     raw,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	job, err := q.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job, nil
}

// EnqueueGeocodeLocations queues one low priority job for all targets.
func EnqueueGeocodeLocations(ctx context.Context, q Enqueuer, targets []domain.GeocodeTarget, source string, opts ...EnqueueOption) (repository.Job, error) {
	if len(targets) == 0 {
		return repository.Job{}, errors.New("no geocode targets")
	}
	opts = append([]EnqueueOption{WithPriority(PriorityLow)}, opts...)
	return EnqueueJob(ctx, q, JobTypeGeocodeLocations, GeocodeLocationsPayload{Targets: targets, Source: source}, opts...)
}
