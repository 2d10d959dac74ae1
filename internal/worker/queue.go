package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/google/uuid"
)

// ErrNoJob is returned by Queue.Claim when nothing is due.
var ErrNoJob = errors.New("worker: no job due")

// Queue hands out jobs and records their outcome.
type Queue interface {
	// Claim marks the next due job as running and returns it.
	Claim(ctx context.Context) (repository.Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	// Fail reschedules the job, or fails it for good when permanent is set
	// or its attempts are used up.
	Fail(ctx context.Context, id uuid.UUID, cause error, permanent bool) error
	// RecoverStale returns jobs stuck in running for longer than olderThan
	// to the queue.
	RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PostgresQueue keeps jobs in the jobs table. Claims use SKIP LOCKED, so
// several processes may share one queue.
type PostgresQueue struct {
	db      *sql.DB
	queries *repository.Queries
}

// NewPostgresQueue returns the queue backed by db.
func NewPostgresQueue(db *sql.DB, queries *repository.Queries) *PostgresQueue {
	return &PostgresQueue{db: db, queries: queries}
}

func (q *PostgresQueue) Claim(ctx context.Context) (repository.Job, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return repository.Job{}, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	qtx := q.queries.WithTx(tx)
	job, err := qtx.DequeueJob(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.Job{}, ErrNoJob
	}
	if err != nil {
		return repository.Job{}, fmt.Errorf("dequeue: %w", err)
	}
	if err := qtx.UpdateJobStarted(ctx, job.ID); err != nil {
		return repository.Job{}, fmt.Errorf("mark started: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return repository.Job{}, fmt.Errorf("commit claim: %w", err)
	}
	return job, nil
}

func (q *PostgresQueue) Complete(ctx context.Context, id uuid.UUID) error {
	return q.queries.UpdateJobCompleted(ctx, id)
}

func (q *PostgresQueue) Fail(ctx context.Context, id uuid.UUID, cause error, permanent bool) error {
	return q.queries.UpdateJobFailed(ctx, repository.UpdateJobFailedParams{
		ID:           id,
		ErrorMessage: sql.NullString{String: cause.Error(), Valid: true},
		Permanent:    permanent,
	})
}

func (q *PostgresQueue) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return q.queries.RecoverStaleJobs(ctx, olderThan.Seconds())
}

var _ Queue = (*PostgresQueue)(nil)
