package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/storefinder/internal/geo"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/DukeRupert/storefinder/internal/worker"
)

// CoordinateStore persists looked up coordinates.
type CoordinateStore interface {
	SetLocationCoordinates(ctx context.Context, arg repository.SetLocationCoordinatesParams) (int64, error)
}

// GeocodeLocationsHandler fills in coordinates for locations that were
// imported without them. Lookups run one after another through the
// geocoder, which is expected to be throttled to the upstream usage policy.
type GeocodeLocationsHandler struct {
	store    CoordinateStore
	geocoder geo.Geocoder
	jobs     worker.Enqueuer
	logger   *slog.Logger
}

// requeueTimeout bounds the insert of the follow-up job once the job
// context is already done.
const requeueTimeout = 5 * time.Second

// NewGeocodeLocationsHandler creates a new handler for geocoding jobs. jobs
// receives a follow-up job for the targets left over when a run is cut
// short; it may be nil, in which case the interrupted job is retried.
func NewGeocodeLocationsHandler(store CoordinateStore, geocoder geo.Geocoder, jobs worker.Enqueuer, logger *slog.Logger) *GeocodeLocationsHandler {
	return &GeocodeLocationsHandler{
		store:    store,
		geocoder: geocoder,
		jobs:     jobs,
		logger:   logger,
	}
}

// Type returns the job type identifier.
func (h *GeocodeLocationsHandler) Type() string {
	return worker.JobTypeGeocodeLocations
}

// Handle looks up every target in order. A failed lookup or write only
// skips that target, so the worker does not retry and hammer the upstream.
// When ctx ends first, the targets not yet looked up move to a new job; if
// that cannot be queued the job fails and is retried.
func (h *GeocodeLocationsHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.GeocodeLocationsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	h.logger.Info("geocoding locations", "count", len(p.Targets), "source", p.Source)

	var found, missed int
	for i, t := range p.Targets {
		if ctx.Err() != nil {
			return h.interrupted(ctx, p, i, found, missed)
		}

		c, err := h.geocoder.Geocode(ctx, t.Address())
		if err != nil && ctx.Err() != nil {
			return h.interrupted(ctx, p, i, found, missed)
		}
		if err != nil {
			missed++
			level := slog.LevelWarn
			if errors.Is(err, geo.ErrNoResult) {
				level = slog.LevelDebug
			}
			h.logger.Log(ctx, level, "geocoding failed", "error", err, "location_id", t.ID)
			continue
		}

		n, err := h.store.SetLocationCoordinates(ctx, repository.SetLocationCoordinatesParams{
			ID:        t.ID,
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
		})
		if err != nil {
			missed++
			h.logger.Warn("failed to save coordinates", "error", err, "location_id", t.ID)
			continue
		}
		if n == 0 {
			// deleted since the import
			missed++
			continue
		}
		found++
	}

	h.logger.Info("geocoding finished", "found", found, "missed", missed)
	return nil
}

// interrupted hands p.Targets[next:] to a follow-up job.
func (h *GeocodeLocationsHandler) interrupted(ctx context.Context, p worker.GeocodeLocationsPayload, next, found, missed int) error {
	remaining := p.Targets[next:]
	h.logger.Warn("geocoding interrupted", "found", found, "missed", missed, "remaining", len(remaining))

	if h.jobs != nil {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
		defer cancel()
		job, err := worker.EnqueueGeocodeLocations(qctx, h.jobs, remaining, p.Source)
		if err == nil {
			h.logger.Info("queued remaining geocoding", "job_id", job.ID, "count", len(remaining))
			return nil
		}
		h.logger.Error("failed to queue remaining geocoding", "error", err, "count", len(remaining))
	}
	return fmt.Errorf("geocoding interrupted with %d targets left: %w", len(remaining), ctx.Err())
}
