package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxImportBatch is the largest number of rows accepted by the batch import
// and duplicate check operations.
const MaxImportBatch = 1000

// =============================================================================
// Defaulting policy
// =============================================================================

// DefaultPolicy says which values replace absent or blank input for one kind
// of write. Optional contact fields (emergency phone, email, website, opening
// hours from/to) always become NULL when blank; the repository handles that.
type DefaultPolicy struct {
	HomeCountry      bool // blank country becomes the configured home country
	Status           LocationStatus
	OpeningHoursType OpeningHoursType
}

var (
	// InsertDefaults applies to every field missing from a new location.
	InsertDefaults = DefaultPolicy{
		HomeCountry:      true,
		Status:           LocationStatusActive,
		OpeningHoursType: OpeningHoursDaytime,
	}

	// UpdateDefaults applies only to fields that are present in an update but
	// blank. Fields absent from an update are never touched.
	UpdateDefaults = DefaultPolicy{
		HomeCountry:      true,
		Status:           LocationStatusActive,
		OpeningHoursType: OpeningHoursDaytime,
	}
)

// Apply fills blank values of p.
func (d DefaultPolicy) Apply(p *CreateLocationParams, homeCountry string) {
	if d.HomeCountry && strings.TrimSpace(p.Country) == "" {
		p.Country = homeCountry
	}
	if p.Status == "" {
		p.Status = d.Status
	}
	if p.OpeningHoursType == "" {
		p.OpeningHoursType = d.OpeningHoursType
	}
}

// ApplyPatch replaces set-but-blank enum and country values of p.
func (d DefaultPolicy) ApplyPatch(p *LocationPatch, homeCountry string) {
	if d.HomeCountry && p.Country.Set && strings.TrimSpace(p.Country.Value) == "" {
		p.Country.Value = homeCountry
	}
	if p.Status.Set && p.Status.Value == "" {
		p.Status.Value = d.Status
	}
	if p.OpeningHoursType.Set && p.OpeningHoursType.Value == "" {
		p.OpeningHoursType.Value = d.OpeningHoursType
	}
}

// =============================================================================
// Batch import
// =============================================================================

// ImportAction discriminates batch import operations.
type ImportAction string

const (
	ImportInsert ImportAction = "insert"
	ImportUpdate ImportAction = "update"
)

// ImportOperation is one row of a batch import. Inserts carry every field
// with defaults applied; updates carry only the fields the operator mapped.
type ImportOperation struct {
	Action     ImportAction  `json:"action"`
	ExistingID *uuid.UUID    `json:"existing_id,omitempty"`
	Data       LocationPatch `json:"data"`
}

// Label returns the name and postal code used in failure reports.
func (o *ImportOperation) Label() (name, postalCode string) {
	return strings.TrimSpace(o.Data.Name.Value), strings.TrimSpace(o.Data.PostalCode.Value)
}

// ImportFailure records one rejected row.
type ImportFailure struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Message    string `json:"error"`
}

// GeocodeTarget is a newly created location that has no coordinates yet.
type GeocodeTarget struct {
	ID          uuid.UUID `json:"id"`
	Street      string    `json:"street"`
	HouseNumber string    `json:"house_number"`
	PostalCode  string    `json:"postal_code"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
}

// Address returns the geocoder query for the target.
func (t GeocodeTarget) Address() string {
	return FormatAddress(t.Street, t.HouseNumber, t.PostalCode, t.City, t.Country)
}

// ImportResult summarizes a committed batch.
type ImportResult struct {
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Skipped int             `json:"skipped"`
	Failed  int             `json:"failed"`
	Total   int             `json:"total"`
	Errors  []ImportFailure `json:"errors"`

	// CreatedWithoutCoordinates lists inserted rows that need geocoding.
	CreatedWithoutCoordinates []GeocodeTarget `json:"created_without_coordinates"`
}

// Fail appends a failure and bumps the failed counter.
func (r *ImportResult) Fail(name, postalCode, message string) {
	r.Failed++
	r.Errors = append(r.Errors, ImportFailure{Name: name, PostalCode: postalCode, Message: message})
}

// ImportRun is the persisted summary of one commit.
type ImportRun struct {
	ID        uuid.UUID       `json:"id"`
	FileName  string          `json:"file_name"`
	Total     int             `json:"total"`
	Created   int             `json:"created"`
	Updated   int             `json:"updated"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Errors    []ImportFailure `json:"errors"`
	CreatedAt time.Time       `json:"created_at"`
}

// =============================================================================
// Duplicate detection
// =============================================================================

// DuplicateCandidate is a (name, postal code) pair to look up.
type DuplicateCandidate struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
}

// Key returns the composite lookup key of the candidate.
func (c DuplicateCandidate) Key() string {
	return DuplicateKey(c.Name, c.PostalCode)
}

// DuplicateMatch is the existing record a candidate collides with.
type DuplicateMatch struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PostalCode  string    `json:"postal_code"`
	City        string    `json:"city"`
	Street      string    `json:"street"`
	HouseNumber string    `json:"house_number"`
}

// ImportBatch is a batch import request. Source names the uploaded file when
// the batch comes from the CSV wizard; Skipped counts duplicate rows the
// operator chose not to send.
type ImportBatch struct {
	Source     string            `json:"source,omitempty"`
	Operations []ImportOperation `json:"rows"`
	Skipped    int               `json:"skipped,omitempty"`
}
