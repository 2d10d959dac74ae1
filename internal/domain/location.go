// Package domain contains core business types and interfaces.
//
// This file defines the Location entity (a service point shown in the store
// finder) and the parameter types used to create, update and list locations.
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Enumerations
// =============================================================================

// LocationStatus is the operational status of a location.
type LocationStatus string

const (
	// LocationStatusActive marks a location that is open for business.
	LocationStatusActive LocationStatus = "aktiv"

	// LocationStatusTemporarilyClosed marks a location that is listed but closed.
	LocationStatusTemporarilyClosed LocationStatus = "temporaer_geschlossen"
)

// IsValid returns true if the status is a recognized value.
func (s LocationStatus) IsValid() bool {
	return s == LocationStatusActive || s == LocationStatusTemporarilyClosed
}

// ParseLocationStatus trims and lower-cases raw input before matching it.
func ParseLocationStatus(raw string) (LocationStatus, bool) {
	s := LocationStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.IsValid()
}

// OpeningHoursType describes how a location's opening hours are expressed.
type OpeningHoursType string

const (
	// OpeningHoursDaytime means regular daytime hours, optionally with From/To.
	OpeningHoursDaytime OpeningHoursType = "tagsueber"

	// OpeningHours24h means the location is reachable around the clock.
	OpeningHours24h OpeningHoursType = "24h"
)

// IsValid returns true if the type is a recognized value.
func (t OpeningHoursType) IsValid() bool {
	return t == OpeningHoursDaytime || t == OpeningHours24h
}

// ParseOpeningHoursType trims and lower-cases raw input before matching it.
func ParseOpeningHoursType(raw string) (OpeningHoursType, bool) {
	t := OpeningHoursType(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.IsValid()
}

// =============================================================================
// Entities
// =============================================================================

// Coordinates is a WGS84 point. A location either has both values or none.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies on the globe.
func (c Coordinates) Valid() bool {
	return !math.IsNaN(c.Latitude) && !math.IsNaN(c.Longitude) &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// OpeningHours describes when a location is open.
type OpeningHours struct {
	Type OpeningHoursType `json:"type"`
	From string           `json:"from,omitempty"`
	To   string           `json:"to,omitempty"`
}

// ServiceType is a capability tag a location can carry ("Pikett", "Wartung").
type ServiceType struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	SortOrder int       `json:"sort_order"`

	// Translations holds localized names by language, admin views only.
	Translations map[string]string `json:"translations,omitempty"`
}

// Location is a physical service point ("Stützpunkt").
type Location struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Street         string         `json:"street"`
	HouseNumber    string         `json:"house_number"`
	PostalCode     string         `json:"postal_code"`
	City           string         `json:"city"`
	Country        string         `json:"country"`
	Phone          string         `json:"phone"`
	EmergencyPhone string         `json:"emergency_phone,omitempty"`
	Email          string         `json:"email,omitempty"`
	Website        string         `json:"website,omitempty"`
	ImageKey       string         `json:"-"`
	ImageURL       string         `json:"image_url,omitempty"`
	Coordinates    *Coordinates   `json:"coordinates,omitempty"`
	Status         LocationStatus `json:"status"`
	OpeningHours   OpeningHours   `json:"opening_hours"`
	Services       []ServiceType  `json:"services"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// HasCoordinates reports whether the location can be placed on a map.
func (l *Location) HasCoordinates() bool {
	return l.Coordinates != nil
}

// IsActive reports whether the location is open for business.
func (l *Location) IsActive() bool {
	return l.Status == LocationStatusActive
}

// IsIncomplete reports whether the record still misses data that an
// operator is expected to fill in after an import.
func (l *Location) IsIncomplete() bool {
	return strings.TrimSpace(l.HouseNumber) == "" || l.Coordinates == nil
}

// HasService reports whether the location carries the given tag.
func (l *Location) HasService(id uuid.UUID) bool {
	for _, s := range l.Services {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Address returns the single-line postal address used for geocoding.
func (l *Location) Address() string {
	return FormatAddress(l.Street, l.HouseNumber, l.PostalCode, l.City, l.Country)
}

// FormatAddress joins the non-empty address parts with single spaces.
func FormatAddress(street, houseNumber, postalCode, city, country string) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{street, houseNumber, postalCode, city, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// Parameters
// =============================================================================

// CreateLocationParams contains parameters for creating a location.
type CreateLocationParams struct {
	Name             string
	Street           string
	HouseNumber      string
	PostalCode       string
	City             string
	Country          string
	Phone            string
	EmergencyPhone   string
	Email            string
	Website          string
	ImageURL         string
	Coordinates      *Coordinates
	Status           LocationStatus
	OpeningHoursType OpeningHoursType
	OpeningHoursFrom string
	OpeningHoursTo   string
	ServiceTypeIDs   []uuid.UUID
}

// Validate checks required fields and enumerations. House number is not
// required; a location may be created without it and completed later.
func (p *CreateLocationParams) Validate(op string) error {
	var ve *ValidationError
	add := func(field, msg string) {
		if ve == nil {
			ve = NewValidationError(op, field, msg)
			return
		}
		AddFieldError(ve, field, msg)
	}

	required := []struct{ field, label, value string }{
		{"name", "Name", p.Name},
		{"street", "Street", p.Street},
		{"postal_code", "Postal code", p.PostalCode},
		{"city", "City", p.City},
		{"country", "Country", p.Country},
		{"phone", "Phone", p.Phone},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			add(r.field, r.label+" is required")
		}
	}
	if len(strings.TrimSpace(p.Name)) > 200 {
		add("name", "Name must be 200 characters or less")
	}
	if !p.Status.IsValid() {
		add("status", fmt.Sprintf("Invalid status %q", p.Status))
	}
	if !p.OpeningHoursType.IsValid() {
		add("opening_hours_type", fmt.Sprintf("Invalid opening hours type %q", p.OpeningHoursType))
	}
	if p.Email != "" && !IsValidEmail(p.Email) {
		add("email", "Invalid email address")
	}
	if p.Website != "" && !IsValidWebsite(p.Website) {
		add("website", "Invalid website URL")
	}
	if p.Coordinates != nil && !p.Coordinates.Valid() {
		add("coordinates", "Coordinates are out of range")
	}

	if ve == nil {
		return nil
	}
	return ve
}

// ListLocationsParams controls the admin location listing.
type ListLocationsParams struct {
	Search     string
	Incomplete bool   // only rows missing a house number or coordinates
	SortBy     string // name, postal_code, city, status, created_at
	SortDesc   bool
	Page       int
	Limit      int
}

// Sortable columns for ListLocationsParams.SortBy.
var LocationSortColumns = map[string]bool{
	"name":        true,
	"postal_code": true,
	"city":        true,
	"status":      true,
	"created_at":  true,
}

// Normalize clamps paging values and falls back to sorting by name.
func (p *ListLocationsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if !LocationSortColumns[p.SortBy] {
		p.SortBy = "name"
	}
	p.Search = SanitizeSearch(p.Search)
}

// Offset returns the row offset for the current page.
func (p *ListLocationsParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// LocationPage is one page of a location listing.
type LocationPage struct {
	Locations  []Location `json:"locations"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
}

// NewLocationPage computes the page count for total rows.
func NewLocationPage(locations []Location, total, page, limit int) LocationPage {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	if locations == nil {
		locations = []Location{}
	}
	return LocationPage{
		Locations:  locations,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pages,
	}
}
