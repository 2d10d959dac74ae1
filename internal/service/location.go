package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/google/uuid"
)

// LocationService defines the interface for location administration.
type LocationService interface {
	// Create creates a location with its tags. Blank country, status and
	// opening hours type receive the insert defaults.
	Create(ctx context.Context, params domain.CreateLocationParams) (*domain.Location, error)

	// GetByID retrieves a location with its tags.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Location, error)

	// List returns one page of locations matching params.
	List(ctx context.Context, params domain.ListLocationsParams) (*domain.LocationPage, error)

	// Update writes only the set fields of patch. The tag set is replaced as a
	// whole when patch.ServiceTypeIDs is set.
	Update(ctx context.Context, id uuid.UUID, patch domain.LocationPatch) (*domain.Location, error)

	// Delete deletes a location and its tag links.
	Delete(ctx context.Context, id uuid.UUID) error
}

// locationService implements LocationService.
type locationService struct {
	store       TxStore
	homeCountry string
	logger      *slog.Logger
}

// NewLocationService creates a new LocationService.
func NewLocationService(store TxStore, homeCountry string, logger *slog.Logger) LocationService {
	return &locationService{
		store:       store,
		homeCountry: homeCountry,
		logger:      logger,
	}
}

// Create creates a location with its tags.
func (s *locationService) Create(ctx context.Context, params domain.CreateLocationParams) (*domain.Location, error) {
	const op = "LocationService.Create"

	domain.InsertDefaults.Apply(&params, s.homeCountry)
	if err := params.Validate(op); err != nil {
		return nil, err
	}
	tags := dedupeIDs(params.ServiceTypeIDs)
	if err := s.checkServiceTypes(ctx, op, tags); err != nil {
		return nil, err
	}

	var created repository.Location
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		created, err = tx.CreateLocation(ctx, createParamsToRepo(params))
		if err != nil {
			return err
		}
		return replaceServices(ctx, tx, created.ID, tags)
	})
	if err != nil {
		s.logger.Error("failed to create location", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}

	s.logger.Info("location created", "location_id", created.ID, "name", created.Name)
	return s.load(ctx, op, created.ID)
}

// GetByID retrieves a location with its tags.
func (s *locationService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	const op = "LocationService.GetByID"
	return s.load(ctx, op, id)
}

// List returns one page of locations.
func (s *locationService) List(ctx context.Context, params domain.ListLocationsParams) (*domain.LocationPage, error) {
	const op = "LocationService.List"

	params.Normalize()

	total, err := s.store.CountLocations(ctx, params.Search, params.Incomplete)
	if err != nil {
		s.logger.Error("failed to count locations", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}

	rows, err := s.store.SearchLocations(ctx, repository.SearchLocationsParams{
		Search:     params.Search,
		Incomplete: params.Incomplete,
		SortBy:     params.SortBy,
		SortDesc:   params.SortDesc,
		Limit:      int32(params.Limit),
		Offset:     int32(params.Offset()),
	})
	if err != nil {
		s.logger.Error("failed to list locations", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}

	locs := repoLocationsToDomain(rows)
	if err := attachServices(ctx, s.store, locs); err != nil {
		s.logger.Error("failed to load location services", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}

	page := domain.NewLocationPage(locs, int(total), params.Page, params.Limit)
	return &page, nil
}

// Update applies a partial update.
func (s *locationService) Update(ctx context.Context, id uuid.UUID, patch domain.LocationPatch) (*domain.Location, error) {
	const op = "LocationService.Update"

	domain.UpdateDefaults.ApplyPatch(&patch, s.homeCountry)
	if err := patch.Validate(op); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, domain.Invalid(op, "No fields to update")
	}

	var tags []uuid.UUID
	if patch.ServiceTypeIDs.Set {
		tags = dedupeIDs(patch.ServiceTypeIDs.Value)
		if err := s.checkServiceTypes(ctx, op, tags); err != nil {
			return nil, err
		}
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.UpdateLocationColumns(ctx, id, patchColumnsToRepo(patch.Columns())); err != nil {
			return err
		}
		if !patch.ServiceTypeIDs.Set {
			return nil
		}
		return replaceServices(ctx, tx, id, tags)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "location", id.String())
		}
		s.logger.Error("failed to update location", "error", err, "op", op, "location_id", id)
		return nil, domain.Store(err, op)
	}

	s.logger.Info("location updated", "location_id", id)
	return s.load(ctx, op, id)
}

// Delete deletes a location.
func (s *locationService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "LocationService.Delete"

	n, err := s.store.DeleteLocation(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete location", "error", err, "op", op, "location_id", id)
		return domain.Store(err, op)
	}
	if n == 0 {
		return domain.NotFound(op, "location", id.String())
	}

	s.logger.Info("location deleted", "location_id", id)
	return nil
}

func (s *locationService) load(ctx context.Context, op string, id uuid.UUID) (*domain.Location, error) {
	row, err := s.store.GetLocationByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "location", id.String())
		}
		s.logger.Error("failed to get location", "error", err, "op", op, "location_id", id)
		return nil, domain.Store(err, op)
	}

	locs := []domain.Location{repoLocationToDomain(row)}
	if err := attachServices(ctx, s.store, locs); err != nil {
		s.logger.Error("failed to load location services", "error", err, "op", op, "location_id", id)
		return nil, domain.Store(err, op)
	}
	return &locs[0], nil
}

// checkServiceTypes rejects tag ids that do not exist.
func (s *locationService) checkServiceTypes(ctx context.Context, op string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := s.store.CountServiceTypesByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to check service types", "error", err, "op", op)
		return domain.Store(err, op)
	}
	if int(n) != len(ids) {
		return domain.NewValidationError(op, "service_type_ids", "Unknown service type")
	}
	return nil
}
