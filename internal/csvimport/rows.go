package csvimport

import (
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
)

// RawRow is one data row of the uploaded file, keyed by (deduplicated)
// column header. Line is the 1-based data row ordinal.
type RawRow struct {
	Line   int               `json:"line"`
	Values map[string]string `json:"values"`
}

// IsEmpty reports whether every cell is blank.
func (r RawRow) IsEmpty() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// MappedRow holds the values of the mapped target fields only.
type MappedRow struct {
	Line   int                    `json:"line"`
	Values map[TargetField]string `json:"values"`
}

// Get returns the trimmed value of f.
func (r MappedRow) Get(f TargetField) string {
	return strings.TrimSpace(r.Values[f])
}

// Candidate returns the duplicate lookup pair of the row.
func (r MappedRow) Candidate() domain.DuplicateCandidate {
	return domain.DuplicateCandidate{Name: r.Get(FieldName), PostalCode: r.Get(FieldPostalCode)}
}

// MapRow applies mappings to a raw row. Ignored columns are dropped; a
// mapped column missing from the row maps to "".
func MapRow(raw RawRow, mappings []Mapping) MappedRow {
	values := make(map[TargetField]string, len(mappings))
	for _, m := range mappings {
		if m.Target == FieldIgnore {
			continue
		}
		values[m.Target] = raw.Values[m.Column]
	}
	return MappedRow{Line: raw.Line, Values: values}
}

// RowStatus is the preview classification of an import row.
type RowStatus string

const (
	RowValid     RowStatus = "valid"
	RowDuplicate RowStatus = "duplicate"
	RowInvalid   RowStatus = "invalid"
)

// DuplicateAction is the operator's choice for a duplicate row.
type DuplicateAction string

const (
	ActionSkip      DuplicateAction = "skip"
	ActionOverwrite DuplicateAction = "overwrite"
)

// IsValid returns true if the action is a recognized value.
func (a DuplicateAction) IsValid() bool {
	return a == ActionSkip || a == ActionOverwrite
}

// ImportRow is a previewed row: its raw and mapped values, validation
// outcome, and duplicate state.
type ImportRow struct {
	Line     int                    `json:"line"`
	Raw      map[string]string      `json:"raw"`
	Mapped   MappedRow              `json:"mapped"`
	Status   RowStatus              `json:"status"`
	Errors   []string               `json:"errors"`
	Warnings []string               `json:"warnings"`
	Existing *domain.DuplicateMatch `json:"existing,omitempty"`
	Action   DuplicateAction        `json:"action"`
}

// NewImportRow maps and validates a raw row. Duplicate state is applied
// later by MarkDuplicate.
func NewImportRow(raw RawRow, mappings []Mapping) ImportRow {
	mapped := MapRow(raw, mappings)
	v := ValidateRow(mapped.Values)
	status := RowValid
	if !v.Valid() {
		status = RowInvalid
	}
	return ImportRow{
		Line:     raw.Line,
		Raw:      raw.Values,
		Mapped:   mapped,
		Status:   status,
		Errors:   v.Errors,
		Warnings: v.Warnings,
		Action:   ActionSkip,
	}
}

// MarkDuplicate flags a valid row as colliding with existing and resets its
// action to skip.
func (r *ImportRow) MarkDuplicate(existing domain.DuplicateMatch) {
	if r.Status != RowValid {
		return
	}
	r.Status = RowDuplicate
	r.Existing = &existing
	r.Action = ActionSkip
}

// WillBeSent reports whether the row becomes an insert or update on commit.
func (r *ImportRow) WillBeSent() bool {
	return r.Status == RowValid || (r.Status == RowDuplicate && r.Action == ActionOverwrite)
}
