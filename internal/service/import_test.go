package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertOp(name, postalCode string) domain.ImportOperation {
	return domain.ImportOperation{
		Action: domain.ImportInsert,
		Data: domain.LocationPatch{
			Name:       domain.Some(name),
			Street:     domain.Some("Bahnhofstrasse"),
			PostalCode: domain.Some(postalCode),
			City:       domain.Some("Zürich"),
			Country:    domain.Some(""),
			Phone:      domain.Some("044"),
			Email:      domain.Some(""),
			Status:     domain.Some(domain.LocationStatus("")),
		},
	}
}

func TestImportService_Inserts(t *testing.T) {
	store := newFakeStore()
	svc := NewImportService(store, "CH", discardLogger())

	lat, lng := 47.37, 8.54
	withCoords := insertOp("Mit Koordinaten", "8001")
	withCoords.Data.Latitude = domain.Some(&lat)
	withCoords.Data.Longitude = domain.Some(&lng)

	result, err := svc.Import(context.Background(), domain.ImportBatch{
		Source:     "standorte.csv",
		Operations: []domain.ImportOperation{insertOp("Ohne Koordinaten", "8002"), withCoords},
		Skipped:    3,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 3, result.Skipped)
	require.Len(t, result.CreatedWithoutCoordinates, 1)
	target := result.CreatedWithoutCoordinates[0]
	assert.Equal(t, "8002", target.PostalCode)
	assert.Equal(t, "CH", target.Country)

	for _, l := range store.ordered() {
		assert.Equal(t, "CH", l.Country)
		assert.Equal(t, "aktiv", l.Status)
		assert.Equal(t, "tagsueber", l.OpeningHoursType)
	}

	// one transaction for the whole insert batch
	assert.Equal(t, 1, store.txCalls)

	require.Len(t, store.runs, 1)
	assert.Equal(t, "standorte.csv", store.runs[0].FileName)
	assert.EqualValues(t, 2, store.runs[0].Created)
	assert.EqualValues(t, 3, store.runs[0].Skipped)
}

func TestImportService_BatchFailureFallsBackToSingleInserts(t *testing.T) {
	store := newFakeStore()
	store.failCreate["Kaputt AG"] = true
	svc := NewImportService(store, "CH", discardLogger())

	result, err := svc.Import(context.Background(), domain.ImportBatch{
		Operations: []domain.ImportOperation{
			insertOp("Erste AG", "8001"),
			insertOp("Kaputt AG", "8002"),
			insertOp("Dritte AG", "8003"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Kaputt AG", result.Errors[0].Name)
	assert.Equal(t, "8002", result.Errors[0].PostalCode)
	assert.Contains(t, result.Errors[0].Message, "violates not-null constraint")

	// the rolled back batch leaves no duplicates behind
	assert.Equal(t, 2, store.count())
}

func TestImportService_UpdatesSendOnlyMappedFields(t *testing.T) {
	store := newFakeStore()
	id := store.addLocation(repository.Location{
		Name:        "Muster AG",
		Street:      "Altweg",
		HouseNumber: "7",
		PostalCode:  "8001",
		City:        "Zürich",
		Country:     "CH",
		Phone:       "044",
	})
	svc := NewImportService(store, "CH", discardLogger())

	missing := uuid.New()
	result, err := svc.Import(context.Background(), domain.ImportBatch{
		Operations: []domain.ImportOperation{
			{
				Action:     domain.ImportUpdate,
				ExistingID: &id,
				Data: domain.LocationPatch{
					Name:   domain.Some("Muster AG"),
					Street: domain.Some("Neuweg"),
				},
			},
			{
				Action:     domain.ImportUpdate,
				ExistingID: &missing,
				Data:       domain.LocationPatch{Name: domain.Some("Weg AG"), PostalCode: domain.Some("9000")},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "Location not found", result.Errors[0].Message)
	assert.Equal(t, "9000", result.Errors[0].PostalCode)

	updated := store.get(id)
	assert.Equal(t, "Neuweg", updated.Street)
	assert.Equal(t, "7", updated.HouseNumber)
	assert.Equal(t, "044", updated.Phone)
}

func TestImportService_RejectsMalformedBatches(t *testing.T) {
	store := newFakeStore()
	svc := NewImportService(store, "CH", discardLogger())

	tests := []struct {
		name  string
		batch domain.ImportBatch
		msg   string
	}{
		{"empty", domain.ImportBatch{}, "No rows to import"},
		{"too many", domain.ImportBatch{Operations: make([]domain.ImportOperation, domain.MaxImportBatch+1)}, "At most 1000 rows can be imported at once"},
		{"unknown action", domain.ImportBatch{Operations: []domain.ImportOperation{{Action: "upsert"}}}, `Unknown action "upsert"`},
		{"unknown action after valid row", domain.ImportBatch{Operations: []domain.ImportOperation{insertOp("A", "1000"), {Action: "delete"}}}, `Unknown action "delete"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), tt.batch)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			assert.Equal(t, tt.msg, domain.ErrorMessage(err))
		})
	}
	assert.Equal(t, 0, store.count())
	assert.Empty(t, store.runs)
}

func TestImportService_RowValidationFailuresAreCollected(t *testing.T) {
	store := newFakeStore()
	svc := NewImportService(store, "CH", discardLogger())

	badSite := insertOp("Intranet AG", "8002")
	badSite.Data.Website = domain.Some("intranet")

	lat, lng := 8.5, 470.0
	badCoords := insertOp("Weit Weg", "8003")
	badCoords.Data.Latitude = domain.Some(&lat)
	badCoords.Data.Longitude = domain.Some(&lng)

	noName := insertOp("", "8004")
	noID := domain.ImportOperation{Action: domain.ImportUpdate, Data: domain.LocationPatch{Name: domain.Some("Ohne ID"), City: domain.Some("Bern")}}

	result, err := svc.Import(context.Background(), domain.ImportBatch{
		Source:     "gemischt.csv",
		Operations: []domain.ImportOperation{insertOp("Muster AG", "8001"), badSite, badCoords, noName, noID},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 4, result.Failed)
	require.Len(t, result.Errors, 4)
	assert.Equal(t, domain.ImportFailure{Name: "Intranet AG", PostalCode: "8002", Message: "Invalid website URL"}, result.Errors[0])
	assert.Equal(t, domain.ImportFailure{Name: "Weit Weg", PostalCode: "8003", Message: "Coordinates are out of range"}, result.Errors[1])
	assert.Equal(t, "Name must not be empty", result.Errors[2].Message)
	assert.Equal(t, "Update rows need an existing_id", result.Errors[3].Message)

	assert.Equal(t, 1, store.count())
	require.Len(t, store.runs, 1)
	assert.Equal(t, int32(4), store.runs[0].Failed)
}

func TestImportService_RunFailureDoesNotFailImport(t *testing.T) {
	store := newFakeStore()
	store.errRun = errors.New("relation import_runs does not exist")
	svc := NewImportService(store, "CH", discardLogger())

	result, err := svc.Import(context.Background(), domain.ImportBatch{Operations: []domain.ImportOperation{insertOp("A", "1000")}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
}

func TestImportService_ListRuns(t *testing.T) {
	store := newFakeStore()
	store.failCreate["B"] = true
	svc := NewImportService(store, "CH", discardLogger())

	_, err := svc.Import(context.Background(), domain.ImportBatch{
		Source:     "a.csv",
		Operations: []domain.ImportOperation{insertOp("A", "1000"), insertOp("B", "2000")},
	})
	require.NoError(t, err)

	runs, err := svc.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Created)
	assert.Equal(t, 1, runs[0].Failed)
	require.Len(t, runs[0].Errors, 1)
	assert.Equal(t, "B", runs[0].Errors[0].Name)
}
