package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/geo"
	"github.com/DukeRupert/storefinder/internal/worker"
)

// GeocodingService resolves addresses for the admin form and queues
// background lookups for imported locations.
type GeocodingService interface {
	// Geocode returns the coordinate of a free-text address.
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)

	// ScheduleGeocoding queues one background job that looks up targets
	// sequentially.
	ScheduleGeocoding(ctx context.Context, targets []domain.GeocodeTarget) error
}

type geocodingService struct {
	geocoder geo.Geocoder
	jobs     worker.Enqueuer
	logger   *slog.Logger
}

// NewGeocodingService creates a new GeocodingService.
func NewGeocodingService(geocoder geo.Geocoder, jobs worker.Enqueuer, logger *slog.Logger) GeocodingService {
	return &geocodingService{
		geocoder: geocoder,
		jobs:     jobs,
		logger:   logger,
	}
}

// Geocode looks up address.
func (s *geocodingService) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	const op = "GeocodingService.Geocode"

	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Coordinates{}, domain.Invalid(op, "Address is required")
	}
	if len(address) > domain.MaxSearchLength {
		return domain.Coordinates{}, domain.Invalid(op, "Address is too long")
	}

	c, err := s.geocoder.Geocode(ctx, address)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, geo.ErrNoResult):
		return domain.Coordinates{}, domain.Errorf(domain.ENOTFOUND, op, "No coordinates found for this address")
	case errors.Is(err, geo.ErrRateLimit):
		return domain.Coordinates{}, domain.RateLimit(op)
	default:
		s.logger.Warn("geocoding failed", "error", err, "op", op)
		return domain.Coordinates{}, domain.Unavailable(err, op, "Geocoding service is unavailable")
	}
}

// ScheduleGeocoding enqueues a geocode_locations job.
func (s *geocodingService) ScheduleGeocoding(ctx context.Context, targets []domain.GeocodeTarget) error {
	const op = "GeocodingService.ScheduleGeocoding"

	if len(targets) == 0 {
		return nil
	}
	job, err := worker.EnqueueGeocodeLocations(ctx, s.jobs, targets, "import")
	if err != nil {
		s.logger.Error("failed to enqueue geocoding job", "error", err, "op", op, "count", len(targets))
		return domain.Store(err, op)
	}
	s.logger.Info("geocoding job enqueued", "job_id", job.ID, "count", len(targets))
	return nil
}
