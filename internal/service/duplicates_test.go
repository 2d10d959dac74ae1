package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicateService_CheckDuplicates(t *testing.T) {
	store := newFakeStore()
	existing := store.addLocation(repository.Location{Name: "Muster AG", PostalCode: "8001", City: "Zürich", Street: "Bahnhofstrasse", HouseNumber: "12"})
	store.addLocation(repository.Location{Name: "Muster AG", PostalCode: "3000", City: "Bern"})
	svc := NewDuplicateService(store, discardLogger())

	candidates := []domain.DuplicateCandidate{
		{Name: "  muster ag ", PostalCode: " 8001"},
		{Name: "Muster AG", PostalCode: "8002"},
		{Name: "Other GmbH", PostalCode: "8001"},
		{Name: "MUSTER AG", PostalCode: "8001"},
	}
	got, err := svc.CheckDuplicates(context.Background(), candidates)
	require.NoError(t, err)

	require.Len(t, got, 1)
	m, ok := got["muster ag::8001"]
	require.True(t, ok)
	assert.Equal(t, existing, m.ID)
	assert.Equal(t, "Zürich", m.City)
	assert.Equal(t, "12", m.HouseNumber)

	// one query, narrowed to distinct postal codes
	require.Len(t, store.postalCodeLookup, 1)
	assert.ElementsMatch(t, []string{"8001", "8002"}, store.postalCodeLookup[0])
}

func TestDuplicateService_CheckDuplicatesEdgeCases(t *testing.T) {
	store := newFakeStore()
	svc := NewDuplicateService(store, discardLogger())

	t.Run("no postal codes skips the query", func(t *testing.T) {
		got, err := svc.CheckDuplicates(context.Background(), []domain.DuplicateCandidate{{Name: "A"}})
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Empty(t, store.postalCodeLookup)
	})

	t.Run("batch too large", func(t *testing.T) {
		_, err := svc.CheckDuplicates(context.Background(), make([]domain.DuplicateCandidate, domain.MaxImportBatch+1))
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("store failure", func(t *testing.T) {
		store.errList = errors.New("timeout")
		_, err := svc.CheckDuplicates(context.Background(), []domain.DuplicateCandidate{{Name: "A", PostalCode: "1"}})
		assert.Equal(t, domain.ESTORE, domain.ErrorCode(err))
	})
}
