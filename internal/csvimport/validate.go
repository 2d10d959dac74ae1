package csvimport

import (
	"math"
	"strconv"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
)

// Validation holds blocking errors and non-blocking warnings for one row.
type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether the row may be imported.
func (v Validation) Valid() bool {
	return len(v.Errors) == 0
}

// ValidateRow checks one mapped row. Every rule runs; violations are
// collected rather than returned on the first failure.
func ValidateRow(values map[TargetField]string) Validation {
	v := Validation{Errors: []string{}, Warnings: []string{}}
	get := func(f TargetField) string { return strings.TrimSpace(values[f]) }

	for _, f := range RequiredFields() {
		if get(f) == "" {
			v.Errors = append(v.Errors, Label(f)+" is missing")
		}
	}

	if get(FieldHouseNumber) == "" {
		v.Warnings = append(v.Warnings, "House number is missing; add it after the import")
	}

	if s := get(FieldStatus); s != "" {
		if _, ok := domain.ParseLocationStatus(s); !ok {
			v.Errors = append(v.Errors, "Invalid status (allowed: aktiv, temporaer_geschlossen)")
		}
	}

	if t := get(FieldOpeningHoursType); t != "" {
		if _, ok := domain.ParseOpeningHoursType(t); !ok {
			v.Errors = append(v.Errors, "Invalid opening hours type (allowed: tagsueber, 24h)")
		}
	}

	if e := get(FieldEmail); e != "" && !domain.IsValidEmail(e) {
		v.Errors = append(v.Errors, "Invalid email format")
	}

	if w := get(FieldWebsite); w != "" && !domain.IsValidWebsite(w) {
		v.Errors = append(v.Errors, "Invalid website URL")
	}

	lat, lng := get(FieldLatitude), get(FieldLongitude)
	var c domain.Coordinates
	numeric := true
	if lat != "" {
		f, err := parseNumber(lat)
		if err != nil {
			v.Errors = append(v.Errors, "Latitude must be numeric")
			numeric = false
		}
		c.Latitude = f
	}
	if lng != "" {
		f, err := parseNumber(lng)
		if err != nil {
			v.Errors = append(v.Errors, "Longitude must be numeric")
			numeric = false
		}
		c.Longitude = f
	}
	switch {
	case (lat == "") != (lng == ""):
		v.Errors = append(v.Errors, "Latitude and longitude must be given together")
	case lat != "" && numeric && !c.Valid():
		v.Errors = append(v.Errors, "Coordinates are out of range")
	}

	return v
}

// parseNumber accepts a decimal comma as well as a decimal point.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}
