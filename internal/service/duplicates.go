package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/metrics"
)

// DuplicateService finds existing locations that imported rows collide with.
type DuplicateService interface {
	// CheckDuplicates maps domain.DuplicateKey of every candidate that has a
	// match to the first matching location.
	CheckDuplicates(ctx context.Context, candidates []domain.DuplicateCandidate) (map[string]domain.DuplicateMatch, error)
}

type duplicateService struct {
	store  Store
	logger *slog.Logger
}

// NewDuplicateService creates a new DuplicateService.
func NewDuplicateService(store Store, logger *slog.Logger) DuplicateService {
	return &duplicateService{store: store, logger: logger}
}

// CheckDuplicates narrows the lookup to the distinct postal codes of the
// batch, then scans the fetched rows for a case-insensitive name match.
func (s *duplicateService) CheckDuplicates(ctx context.Context, candidates []domain.DuplicateCandidate) (map[string]domain.DuplicateMatch, error) {
	const op = "DuplicateService.CheckDuplicates"

	if len(candidates) > domain.MaxImportBatch {
		return nil, domain.Invalid(op, fmt.Sprintf("At most %d rows can be checked at once", domain.MaxImportBatch))
	}

	seen := make(map[string]bool)
	postalCodes := make([]string, 0, len(candidates))
	for _, c := range candidates {
		pc := strings.TrimSpace(c.PostalCode)
		if pc == "" || seen[pc] {
			continue
		}
		seen[pc] = true
		postalCodes = append(postalCodes, pc)
	}

	matches := make(map[string]domain.DuplicateMatch)
	if len(postalCodes) == 0 {
		return matches, nil
	}

	rows, err := s.store.ListLocationsByPostalCodes(ctx, postalCodes)
	if err != nil {
		metrics.DuplicateCheck(false)
		s.logger.Error("failed to load duplicate candidates", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}
	metrics.DuplicateCheck(true)

	for _, c := range candidates {
		name := strings.TrimSpace(c.Name)
		pc := strings.TrimSpace(c.PostalCode)
		for _, r := range rows {
			if strings.TrimSpace(r.PostalCode) != pc || !strings.EqualFold(strings.TrimSpace(r.Name), name) {
				continue
			}
			matches[c.Key()] = domain.DuplicateMatch{
				ID:          r.ID,
				Name:        r.Name,
				PostalCode:  r.PostalCode,
				City:        r.City,
				Street:      r.Street,
				HouseNumber: r.HouseNumber,
			}
			break
		}
	}
	return matches, nil
}
