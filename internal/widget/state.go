// Package widget holds the query logic behind the embeddable store finder:
// the visitor's session state, the filter pipeline over published
// locations, nearest-location search and cancellable routing.
package widget

import (
	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/geo"
	"github.com/DukeRupert/storefinder/internal/i18n"
	"github.com/google/uuid"
)

// PageSize is the number of results shown initially and added by LoadMore.
const PageSize = 20

// State is the complete, serializable state of one widget session. Every
// derived view is computed from it by pure functions.
type State struct {
	Language     i18n.Language       `json:"language"`
	Query        string              `json:"query"`
	Services     []uuid.UUID         `json:"services"`
	User         *domain.Coordinates `json:"user,omitempty"`
	RadiusKm     float64             `json:"radius_km"`
	SelectedID   *uuid.UUID          `json:"selected_id,omitempty"`
	HoveredID    *uuid.UUID          `json:"hovered_id,omitempty"`
	VisibleCount int                 `json:"visible_count"`
	Route        *ActiveRoute        `json:"route,omitempty"`
}

// ActiveRoute is a computed route to one location.
type ActiveRoute struct {
	geo.Route
	TargetID uuid.UUID `json:"target_id"`
}

// NewState returns the initial state for a visitor.
func NewState(lang i18n.Language, radiusKm float64) State {
	return State{
		Language:     lang,
		Services:     []uuid.UUID{},
		RadiusKm:     radiusKm,
		VisibleCount: PageSize,
	}
}

// WithQuery returns s with a new search text. Short queries drop the derived
// user coordinate the way clearing the search box does.
func (s State) WithQuery(q string) State {
	s.Query = q
	s.VisibleCount = PageSize
	if len([]rune(q)) < MinQueryLength {
		s.User = nil
	}
	return s
}

// ToggleService adds or removes a capability filter.
func (s State) ToggleService(id uuid.UUID) State {
	out := make([]uuid.UUID, 0, len(s.Services)+1)
	found := false
	for _, existing := range s.Services {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		out = append(out, id)
	}
	s.Services = out
	s.VisibleCount = PageSize
	return s
}

// WithUserLocation sets the visitor's position. A zero radius is replaced by
// defaultRadiusKm so the position has an effect.
func (s State) WithUserLocation(c domain.Coordinates, defaultRadiusKm float64) State {
	s.User = &c
	if s.RadiusKm == 0 {
		s.RadiusKm = defaultRadiusKm
	}
	s.VisibleCount = PageSize
	return s
}

// ResetFilters clears search text, capability filters and the route.
func (s State) ResetFilters() State {
	s.Query = ""
	s.Services = []uuid.UUID{}
	s.Route = nil
	s.VisibleCount = PageSize
	return s
}

// LoadMore reveals the next page of results.
func (s State) LoadMore() State {
	s.VisibleCount += PageSize
	return s
}

// Filter returns the criteria of s.
func (s State) Filter() Filter {
	return Filter{Query: s.Query, Services: s.Services, User: s.User, RadiusKm: s.RadiusKm}
}

// View is what the widget renders for a state.
type View struct {
	Results   []Match `json:"results"`
	Total     int     `json:"total"`
	Remaining int     `json:"remaining"`
	Empty     bool    `json:"empty"`
}

// Render applies the filter pipeline and paging of s to candidates.
func (s State) Render(candidates []domain.Location) View {
	matches := Apply(candidates, s.Filter())
	visible := Page(matches, s.VisibleCount)
	return View{
		Results:   visible,
		Total:     len(matches),
		Remaining: len(matches) - len(visible),
		Empty:     len(matches) == 0,
	}
}

// Page returns the first n matches.
func Page(matches []Match, n int) []Match {
	if n < 0 {
		n = 0
	}
	if n > len(matches) {
		n = len(matches)
	}
	return matches[:n]
}
