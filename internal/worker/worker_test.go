package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"no goroutines", func(c *Config) { c.Concurrency = 0 }, "concurrency must be between 1 and 100, got 0"},
		{"too many goroutines", func(c *Config) { c.Concurrency = 101 }, "concurrency must be between 1 and 100, got 101"},
		{"sub-second poll", func(c *Config) { c.PollInterval = 500 * time.Millisecond }, "poll interval must be at least 1s"},
		{"stale before timeout", func(c *Config) { c.JobTimeout = 30 * time.Minute }, "stale job threshold 10m0s is shorter than the job timeout 30m0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(NewPermanentError(context.Canceled)))
	assert.True(t, IsPermanent(errors.Join(errors.New("geocode"), NewPermanentError(errors.New("bad payload")))))
	assert.False(t, IsPermanent(context.Canceled))
	assert.False(t, IsPermanent(nil))
}

type fakeEnqueuer struct {
	got repository.EnqueueJobParams
}

func (f *fakeEnqueuer) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	f.got = arg
	return repository.Job{ID: uuid.New(), JobType: arg.JobType, Payload: arg.Payload, Priority: arg.Priority}, nil
}

func TestEnqueueGeocodeLocations(t *testing.T) {
	q := &fakeEnqueuer{}
	targets := []domain.GeocodeTarget{{ID: uuid.New(), Street: "Seeweg", PostalCode: "3000", City: "Bern"}}

	job, err := EnqueueGeocodeLocations(context.Background(), q, targets, "import.csv", WithMaxAttempts(5))
	require.NoError(t, err)

	assert.Equal(t, JobTypeGeocodeLocations, job.JobType)
	assert.EqualValues(t, PriorityLow, q.got.Priority)
	assert.EqualValues(t, 5, q.got.MaxAttempts)

	var payload GeocodeLocationsPayload
	require.NoError(t, json.Unmarshal(q.got.Payload, &payload))
	require.Len(t, payload.Targets, 1)
	assert.Equal(t, "Bern", payload.Targets[0].City)
	assert.Equal(t, "import.csv", payload.Source)

	_, err = EnqueueGeocodeLocations(context.Background(), q, nil, "")
	assert.Error(t, err)
}

func TestWithDelay(t *testing.T) {
	q := &fakeEnqueuer{}
	before := time.Now()

	_, err := EnqueueJob(context.Background(), q, "test_job", map[string]int{"n": 1}, WithDelay(time.Hour))
	require.NoError(t, err)

	assert.True(t, q.got.ScheduledAt.After(before.Add(59*time.Minute)))
}

// memoryQueue is a Queue over a slice.
type memoryQueue struct {
	mu        sync.Mutex
	pending   []repository.Job
	completed []uuid.UUID
	failed    map[uuid.UUID]bool // id -> permanent
	recovered time.Duration
}

func newMemoryQueue(jobs ...repository.Job) *memoryQueue {
	return &memoryQueue{pending: jobs, failed: map[uuid.UUID]bool{}}
}

func (q *memoryQueue) Claim(ctx context.Context) (repository.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return repository.Job{}, ErrNoJob
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job, nil
}

func (q *memoryQueue) Complete(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	return nil
}

func (q *memoryQueue) Fail(ctx context.Context, id uuid.UUID, cause error, permanent bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = permanent
	return nil
}

func (q *memoryQueue) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	q.recovered = olderThan
	return 0, nil
}

func (q *memoryQueue) settled() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.completed) + len(q.failed)
}

type recordingHandler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (h *recordingHandler) Type() string { return "test_job" }

func (h *recordingHandler) Handle(ctx context.Context, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("handler context has no deadline")
	}
	return h.err
}

func testJob(jobType string) repository.Job {
	return repository.Job{ID: uuid.New(), JobType: jobType, MaxAttempts: 3}
}

func TestRunNext_SettlesOutcome(t *testing.T) {
	ok, unknown := testJob("test_job"), testJob("unknown")
	q := newMemoryQueue(ok, unknown)
	w, err := NewWithQueue(q, DefaultConfig(), discardLogger())
	require.NoError(t, err)
	h := &recordingHandler{}
	w.Register(h)

	ran, err := w.runNext(context.Background(), discardLogger())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []uuid.UUID{ok.ID}, q.completed)
	assert.Equal(t, 1, h.calls)

	ran, err = w.runNext(context.Background(), discardLogger())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, q.failed[unknown.ID], "unknown job type fails permanently")

	ran, err = w.runNext(context.Background(), discardLogger())
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestRunNext_TransientFailureIsRetryable(t *testing.T) {
	job := testJob("test_job")
	q := newMemoryQueue(job)
	w, err := NewWithQueue(q, DefaultConfig(), discardLogger())
	require.NoError(t, err)
	w.Register(&recordingHandler{err: errors.New("geocoder timeout")})

	_, err = w.runNext(context.Background(), discardLogger())
	require.NoError(t, err)

	permanent, failed := q.failed[job.ID]
	assert.True(t, failed)
	assert.False(t, permanent)
}

func TestWorker_DrainsQueueOnTick(t *testing.T) {
	q := newMemoryQueue(testJob("test_job"), testJob("test_job"), testJob("test_job"))
	cfg := DefaultConfig()
	cfg.Concurrency = 1
	cfg.PollInterval = time.Second
	w, err := NewWithQueue(q, cfg, discardLogger())
	require.NoError(t, err)
	h := &recordingHandler{}
	w.Register(h)

	w.Start(context.Background())
	assert.Eventually(t, func() bool { return q.settled() == 3 }, 3*time.Second, 20*time.Millisecond)
	w.Stop()
	w.Stop()

	assert.Equal(t, cfg.StaleJobThreshold, q.recovered)
	assert.Len(t, q.completed, 3)
}
