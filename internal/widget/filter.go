package widget

import (
	"sort"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/geo"
	"github.com/google/uuid"
)

// MinQueryLength is the shortest search text that filters.
const MinQueryLength = 3

// Filter holds the criteria of the filter pipeline.
type Filter struct {
	Query    string
	Services []uuid.UUID
	User     *domain.Coordinates
	RadiusKm float64
}

// Match is a location that passed the pipeline. DistanceKm is set when a
// user coordinate is known.
type Match struct {
	Location   domain.Location `json:"location"`
	DistanceKm *float64        `json:"distance_km,omitempty"`
}

// Apply runs the pipeline: text match, then capability tags (every tag
// required), then radius. The radius stage only runs with a user coordinate
// and a positive radius, and orders the result by ascending distance.
// Candidates without coordinates never pass the radius stage.
func Apply(candidates []domain.Location, f Filter) []Match {
	q := strings.ToLower(f.Query)
	textActive := len([]rune(f.Query)) >= MinQueryLength

	out := make([]Match, 0, len(candidates))
	for i := range candidates {
		loc := candidates[i]
		if textActive && !matchesText(&loc, q) {
			continue
		}
		if !hasAllServices(&loc, f.Services) {
			continue
		}
		m := Match{Location: loc}
		if f.User != nil && loc.Coordinates != nil {
			d := geo.Distance(*f.User, *loc.Coordinates)
			m.DistanceKm = &d
		}
		out = append(out, m)
	}

	if f.User == nil || f.RadiusKm <= 0 {
		return out
	}

	inRadius := out[:0]
	for _, m := range out {
		if m.DistanceKm != nil && *m.DistanceKm <= f.RadiusKm {
			inRadius = append(inRadius, m)
		}
	}
	sort.SliceStable(inRadius, func(i, j int) bool {
		return *inRadius[i].DistanceKm < *inRadius[j].DistanceKm
	})
	return inRadius
}

func matchesText(loc *domain.Location, q string) bool {
	return strings.Contains(strings.ToLower(loc.Name), q) ||
		strings.Contains(strings.ToLower(loc.PostalCode), q) ||
		strings.Contains(strings.ToLower(loc.City), q)
}

func hasAllServices(loc *domain.Location, ids []uuid.UUID) bool {
	for _, id := range ids {
		if !loc.HasService(id) {
			return false
		}
	}
	return true
}

// NearestActive returns the active location closest to from. Ties keep the
// first candidate. ok is false when no active location has coordinates.
func NearestActive(candidates []domain.Location, from domain.Coordinates) (nearest domain.Location, distanceKm float64, ok bool) {
	for i := range candidates {
		loc := &candidates[i]
		if !loc.IsActive() || loc.Coordinates == nil {
			continue
		}
		d := geo.Distance(from, *loc.Coordinates)
		if !ok || d < distanceKm {
			nearest, distanceKm, ok = *loc, d, true
		}
	}
	return nearest, distanceKm, ok
}
