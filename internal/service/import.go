package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/metrics"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/sqlc-dev/pqtype"
)

// ImportService commits batches of insert and update operations.
type ImportService interface {
	// Import applies batch. Rows that fail validation or are rejected by the
	// store are reported in the result and never abort the batch. Malformed
	// batches are rejected as a whole.
	Import(ctx context.Context, batch domain.ImportBatch) (*domain.ImportResult, error)

	// ListRuns returns the most recent import runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.ImportRun, error)
}

type importService struct {
	store       TxStore
	homeCountry string
	logger      *slog.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(store TxStore, homeCountry string, logger *slog.Logger) ImportService {
	return &importService{
		store:       store,
		homeCountry: homeCountry,
		logger:      logger,
	}
}

type pendingInsert struct {
	name, postalCode string
	params           domain.CreateLocationParams
}

// Import tries all inserts as one transaction first. When that fails the
// inserts are repeated one by one so a single bad row only fails itself.
// Updates always run one row at a time.
func (s *importService) Import(ctx context.Context, batch domain.ImportBatch) (*domain.ImportResult, error) {
	const op = "ImportService.Import"

	if err := checkBatch(op, batch); err != nil {
		return nil, err
	}

	result := &domain.ImportResult{
		Total:                     len(batch.Operations),
		Skipped:                   batch.Skipped,
		Errors:                    []domain.ImportFailure{},
		CreatedWithoutCoordinates: []domain.GeocodeTarget{},
	}
	inserts, updates := s.prepare(op, batch, result)

	if len(inserts) > 0 {
		s.insertAll(ctx, op, inserts, result)
	}
	for i := range updates {
		s.update(ctx, op, &updates[i], result)
	}

	s.recordRun(ctx, batch.Source, result)
	metrics.ImportFinished(result.Created, result.Updated, result.Skipped, result.Failed)

	s.logger.Info("import finished",
		"source", batch.Source,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// checkBatch rejects batches that cannot be imported at all.
func checkBatch(op string, batch domain.ImportBatch) error {
	n := len(batch.Operations)
	if n == 0 {
		return domain.Invalid(op, "No rows to import")
	}
	if n > domain.MaxImportBatch {
		return domain.Invalid(op, fmt.Sprintf("At most %d rows can be imported at once", domain.MaxImportBatch))
	}
	for _, o := range batch.Operations {
		if o.Action != domain.ImportInsert && o.Action != domain.ImportUpdate {
			return domain.Invalid(op, fmt.Sprintf("Unknown action %q", o.Action))
		}
	}
	return nil
}

// prepare splits the batch by action. Rows that fail validation are
// recorded in result and left out.
func (s *importService) prepare(op string, batch domain.ImportBatch, result *domain.ImportResult) ([]pendingInsert, []domain.ImportOperation) {
	var inserts []pendingInsert
	var updates []domain.ImportOperation
	for _, o := range batch.Operations {
		name, pc := o.Label()
		domain.UpdateDefaults.ApplyPatch(&o.Data, s.homeCountry)
		if err := o.Data.Validate(op); err != nil {
			s.rejectRow(op, name, pc, err, result)
			continue
		}
		switch o.Action {
		case domain.ImportInsert:
			params := o.Data.CreateParams(s.homeCountry)
			if err := params.Validate(op); err != nil {
				s.rejectRow(op, name, pc, err, result)
				continue
			}
			inserts = append(inserts, pendingInsert{name: name, postalCode: pc, params: params})
		case domain.ImportUpdate:
			if o.ExistingID == nil {
				s.rejectRow(op, name, pc, domain.Invalid(op, "Update rows need an existing_id"), result)
				continue
			}
			updates = append(updates, o)
		}
	}
	return inserts, updates
}

func (s *importService) rejectRow(op, name, postalCode string, err error, result *domain.ImportResult) {
	msg := domain.ErrorMessage(err)
	s.logger.Debug("import row invalid", "op", op, "name", name, "postal_code", postalCode, "reason", msg)
	result.Fail(name, postalCode, msg)
}

func (s *importService) insertAll(ctx context.Context, op string, inserts []pendingInsert, result *domain.ImportResult) {
	created := make([]repository.Location, 0, len(inserts))
	err := s.store.InTx(ctx, func(tx Store) error {
		for _, in := range inserts {
			row, err := insertOne(ctx, tx, in.params)
			if err != nil {
				return err
			}
			created = append(created, row)
		}
		return nil
	})
	if err == nil {
		for _, row := range created {
			s.recordCreated(row, result)
		}
		return
	}

	metrics.ImportBatchFallbacks.Inc()
	s.logger.Warn("batch insert failed, inserting rows one by one", "error", err, "op", op, "rows", len(inserts))

	for _, in := range inserts {
		var row repository.Location
		err := s.store.InTx(ctx, func(tx Store) error {
			var err error
			row, err = insertOne(ctx, tx, in.params)
			return err
		})
		if err != nil {
			s.logger.Warn("import row rejected", "error", err, "op", op, "name", in.name, "postal_code", in.postalCode)
			result.Fail(in.name, in.postalCode, domain.Store(err, op).Message)
			continue
		}
		s.recordCreated(row, result)
	}
}

func insertOne(ctx context.Context, tx Store, params domain.CreateLocationParams) (repository.Location, error) {
	row, err := tx.CreateLocation(ctx, createParamsToRepo(params))
	if err != nil {
		return repository.Location{}, err
	}
	if tags := dedupeIDs(params.ServiceTypeIDs); len(tags) > 0 {
		if err := replaceServices(ctx, tx, row.ID, tags); err != nil {
			return repository.Location{}, err
		}
	}
	return row, nil
}

func (s *importService) recordCreated(row repository.Location, result *domain.ImportResult) {
	result.Created++
	if row.Latitude.Valid && row.Longitude.Valid {
		return
	}
	result.CreatedWithoutCoordinates = append(result.CreatedWithoutCoordinates, domain.GeocodeTarget{
		ID:          row.ID,
		Street:      row.Street,
		HouseNumber: row.HouseNumber,
		PostalCode:  row.PostalCode,
		City:        row.City,
		Country:     row.Country,
	})
}

func (s *importService) update(ctx context.Context, op string, o *domain.ImportOperation, result *domain.ImportResult) {
	name, pc := o.Label()
	id := *o.ExistingID

	err := s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.UpdateLocationColumns(ctx, id, patchColumnsToRepo(o.Data.Columns())); err != nil {
			return err
		}
		if !o.Data.ServiceTypeIDs.Set {
			return nil
		}
		return replaceServices(ctx, tx, id, dedupeIDs(o.Data.ServiceTypeIDs.Value))
	})
	if err != nil {
		msg := domain.Store(err, op).Message
		if errors.Is(err, sql.ErrNoRows) {
			msg = "Location not found"
		}
		s.logger.Warn("import update rejected", "error", err, "op", op, "location_id", id)
		result.Fail(name, pc, msg)
		return
	}
	result.Updated++
}

// recordRun persists the summary. Failing to write it does not fail the
// import.
func (s *importService) recordRun(ctx context.Context, source string, result *domain.ImportResult) {
	const op = "ImportService.recordRun"

	errs, err := json.Marshal(result.Errors)
	if err != nil {
		s.logger.Warn("failed to encode import errors", "error", err, "op", op)
		errs = []byte("[]")
	}
	_, err = s.store.CreateImportRun(ctx, repository.CreateImportRunParams{
		FileName: source,
		Total:    int32(result.Total),
		Created:  int32(result.Created),
		Updated:  int32(result.Updated),
		Skipped:  int32(result.Skipped),
		Failed:   int32(result.Failed),
		Errors:   pqtype.NullRawMessage{RawMessage: errs, Valid: true},
	})
	if err != nil {
		s.logger.Warn("failed to record import run", "error", err, "op", op)
	}
}

// ListRuns returns the most recent import runs.
func (s *importService) ListRuns(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	const op = "ImportService.ListRuns"

	if limit < 1 || limit > 100 {
		limit = 20
	}
	rows, err := s.store.ListImportRuns(ctx, int32(limit))
	if err != nil {
		s.logger.Error("failed to list import runs", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}

	runs := make([]domain.ImportRun, 0, len(rows))
	for _, r := range rows {
		run := domain.ImportRun{
			ID:        r.ID,
			FileName:  r.FileName,
			Total:     int(r.Total),
			Created:   int(r.Created),
			Updated:   int(r.Updated),
			Skipped:   int(r.Skipped),
			Failed:    int(r.Failed),
			Errors:    []domain.ImportFailure{},
			CreatedAt: r.CreatedAt,
		}
		if r.Errors.Valid {
			if err := json.Unmarshal(r.Errors.RawMessage, &run.Errors); err != nil {
				s.logger.Warn("failed to decode import errors", "error", err, "op", op, "run_id", r.ID)
			}
		}
		runs = append(runs, run)
	}
	return runs, nil
}
