// Package service contains business logic for the storefinder application.
//
// This file defines the persistence surface the services depend on and the
// conversions between repository rows and domain types.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Store is the subset of repository.Queries used by the services.
type Store interface {
	// Locations
	CreateLocation(ctx context.Context, arg repository.CreateLocationParams) (repository.Location, error)
	GetLocationByID(ctx context.Context, id uuid.UUID) (repository.Location, error)
	DeleteLocation(ctx context.Context, id uuid.UUID) (int64, error)
	UpdateLocationColumns(ctx context.Context, id uuid.UUID, cols []repository.ColumnValue) (repository.Location, error)
	ListLocationsByPostalCodes(ctx context.Context, postalCodes []string) ([]repository.Location, error)
	SearchLocations(ctx context.Context, arg repository.SearchLocationsParams) ([]repository.Location, error)
	CountLocations(ctx context.Context, search string, incomplete bool) (int64, error)
	ListMappedLocations(ctx context.Context, search string) ([]repository.Location, error)
	SetLocationCoordinates(ctx context.Context, arg repository.SetLocationCoordinatesParams) (int64, error)
	SetLocationImage(ctx context.Context, arg repository.SetLocationImageParams) (repository.Location, error)

	// Service types and translations
	ListServiceTypes(ctx context.Context) ([]repository.ServiceType, error)
	CreateServiceType(ctx context.Context, arg repository.CreateServiceTypeParams) (repository.ServiceType, error)
	UpdateServiceType(ctx context.Context, arg repository.UpdateServiceTypeParams) (repository.ServiceType, error)
	DeleteServiceType(ctx context.Context, id uuid.UUID) (int64, error)
	CountServiceTypesByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	ListLocationServices(ctx context.Context, locationIDs []uuid.UUID) ([]repository.ListLocationServicesRow, error)
	DeleteLocationServices(ctx context.Context, locationID uuid.UUID) error
	InsertLocationService(ctx context.Context, arg repository.InsertLocationServiceParams) error
	ListTranslations(ctx context.Context, arg repository.ListTranslationsParams) ([]repository.Translation, error)
	UpsertTranslation(ctx context.Context, arg repository.Translation) error

	// Widget configuration
	GetWidgetConfig(ctx context.Context) (repository.WidgetConfig, error)
	UpsertWidgetConfig(ctx context.Context, arg repository.UpsertWidgetConfigParams) (repository.WidgetConfig, error)

	// Import history
	CreateImportRun(ctx context.Context, arg repository.CreateImportRunParams) (repository.ImportRun, error)
	ListImportRuns(ctx context.Context, limit int32) ([]repository.ImportRun, error)
}

// TxStore is a Store that can run a function inside one transaction.
type TxStore interface {
	Store

	// InTx runs fn against a transaction-bound Store. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// Implementation
// =============================================================================

// sqlStore implements TxStore on top of repository.Queries.
type sqlStore struct {
	*repository.Queries
	db *sql.DB // nil inside a transaction
}

// NewStore creates a TxStore backed by db.
func NewStore(db *sql.DB) TxStore {
	return &sqlStore{Queries: repository.New(db), db: db}
}

// InTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *sqlStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&sqlStore{Queries: s.Queries.WithTx(tx)}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// Conversions
// =============================================================================

// repoLocationToDomain converts a repository location. Services are attached
// separately by attachServices.
func repoLocationToDomain(l repository.Location) domain.Location {
	loc := domain.Location{
		ID:             l.ID,
		Name:           l.Name,
		Street:         l.Street,
		HouseNumber:    l.HouseNumber,
		PostalCode:     l.PostalCode,
		City:           l.City,
		Country:        l.Country,
		Phone:          l.Phone,
		EmergencyPhone: fromNullString(l.EmergencyPhone),
		Email:          fromNullString(l.Email),
		Website:        fromNullString(l.Website),
		ImageKey:       fromNullString(l.ImageKey),
		ImageURL:       fromNullString(l.ImageUrl),
		Status:         domain.LocationStatus(l.Status),
		OpeningHours: domain.OpeningHours{
			Type: domain.OpeningHoursType(l.OpeningHoursType),
			From: fromNullString(l.OpeningHoursFrom),
			To:   fromNullString(l.OpeningHoursTo),
		},
		Services:  []domain.ServiceType{},
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if l.Latitude.Valid && l.Longitude.Valid {
		loc.Coordinates = &domain.Coordinates{Latitude: l.Latitude.Float64, Longitude: l.Longitude.Float64}
	}
	return loc
}

func repoLocationsToDomain(rows []repository.Location) []domain.Location {
	out := make([]domain.Location, 0, len(rows))
	for _, r := range rows {
		out = append(out, repoLocationToDomain(r))
	}
	return out
}

func repoServiceTypeToDomain(st repository.ServiceType) domain.ServiceType {
	return domain.ServiceType{
		ID:        st.ID,
		Name:      st.Name,
		Icon:      st.Icon,
		SortOrder: int(st.SortOrder),
	}
}

// attachServices loads the tags of every location in one query.
func attachServices(ctx context.Context, store Store, locs []domain.Location) error {
	if len(locs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(locs))
	index := make(map[uuid.UUID]int, len(locs))
	for i := range locs {
		ids[i] = locs[i].ID
		index[locs[i].ID] = i
	}

	rows, err := store.ListLocationServices(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range rows {
		i, ok := index[r.LocationID]
		if !ok {
			continue
		}
		locs[i].Services = append(locs[i].Services, domain.ServiceType{
			ID:        r.ID,
			Name:      r.Name,
			Icon:      r.Icon,
			SortOrder: int(r.SortOrder),
		})
	}
	return nil
}

// createParamsToRepo converts validated create parameters.
func createParamsToRepo(p domain.CreateLocationParams) repository.CreateLocationParams {
	arg := repository.CreateLocationParams{
		Name:             strings.TrimSpace(p.Name),
		Street:           strings.TrimSpace(p.Street),
		HouseNumber:      strings.TrimSpace(p.HouseNumber),
		PostalCode:       strings.TrimSpace(p.PostalCode),
		City:             strings.TrimSpace(p.City),
		Country:          strings.TrimSpace(p.Country),
		Phone:            strings.TrimSpace(p.Phone),
		EmergencyPhone:   toNullString(p.EmergencyPhone),
		Email:            toNullString(p.Email),
		Website:          toNullString(p.Website),
		ImageUrl:         toNullString(p.ImageURL),
		Status:           string(p.Status),
		OpeningHoursType: string(p.OpeningHoursType),
		OpeningHoursFrom: toNullString(p.OpeningHoursFrom),
		OpeningHoursTo:   toNullString(p.OpeningHoursTo),
	}
	if p.Coordinates != nil {
		arg.Latitude = sql.NullFloat64{Float64: p.Coordinates.Latitude, Valid: true}
		arg.Longitude = sql.NullFloat64{Float64: p.Coordinates.Longitude, Valid: true}
	}
	return arg
}

func patchColumnsToRepo(cols []domain.PatchColumn) []repository.ColumnValue {
	out := make([]repository.ColumnValue, len(cols))
	for i, c := range cols {
		out[i] = repository.ColumnValue{Column: c.Name, Value: c.Value}
	}
	return out
}

// replaceServices deletes the tag links of a location and inserts ids in order.
func replaceServices(ctx context.Context, store Store, locationID uuid.UUID, ids []uuid.UUID) error {
	if err := store.DeleteLocationServices(ctx, locationID); err != nil {
		return err
	}
	for i, id := range ids {
		err := store.InsertLocationService(ctx, repository.InsertLocationServiceParams{
			LocationID:    locationID,
			ServiceTypeID: id,
			Position:      int32(i),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// toNullString converts a string to sql.NullString. Blank means NULL.
func toNullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// fromNullString converts sql.NullString to a string.
func fromNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
