// Package csvimport turns an uploaded CSV file into location writes.
//
// The pipeline runs in four operator-driven stages (upload, mapping, preview,
// result). Rows move through three explicit shapes: RawRow (keyed by column
// header), MappedRow (keyed by target field) and domain.ImportOperation (the
// payload sent to the batch importer).
package csvimport

import (
	"regexp"
	"strings"
)

// TargetField names a location field a CSV column can be mapped to.
type TargetField string

const (
	FieldIgnore           TargetField = "_ignore"
	FieldName             TargetField = "name"
	FieldStreet           TargetField = "street"
	FieldHouseNumber      TargetField = "house_number"
	FieldPostalCode       TargetField = "postal_code"
	FieldCity             TargetField = "city"
	FieldPhone            TargetField = "phone"
	FieldCountry          TargetField = "country"
	FieldEmail            TargetField = "email"
	FieldWebsite          TargetField = "website"
	FieldEmergencyPhone   TargetField = "emergency_phone"
	FieldLatitude         TargetField = "latitude"
	FieldLongitude        TargetField = "longitude"
	FieldOpeningHoursType TargetField = "opening_hours_type"
	FieldOpeningHoursFrom TargetField = "opening_hours_from"
	FieldOpeningHoursTo   TargetField = "opening_hours_to"
	FieldStatus           TargetField = "status"
)

// FieldSpec describes one target field.
type FieldSpec struct {
	Field    TargetField `json:"field"`
	Label    string      `json:"label"`
	Required bool        `json:"required"`
}

// TargetFields lists every mappable field in display order.
var TargetFields = []FieldSpec{
	{Field: FieldName, Label: "Name", Required: true},
	{Field: FieldStreet, Label: "Street", Required: true},
	{Field: FieldHouseNumber, Label: "House number"},
	{Field: FieldPostalCode, Label: "Postal code", Required: true},
	{Field: FieldCity, Label: "City", Required: true},
	{Field: FieldPhone, Label: "Phone", Required: true},
	{Field: FieldCountry, Label: "Country"},
	{Field: FieldEmail, Label: "Email"},
	{Field: FieldWebsite, Label: "Website"},
	{Field: FieldEmergencyPhone, Label: "Emergency phone"},
	{Field: FieldLatitude, Label: "Latitude"},
	{Field: FieldLongitude, Label: "Longitude"},
	{Field: FieldOpeningHoursType, Label: "Opening hours type"},
	{Field: FieldOpeningHoursFrom, Label: "Opening hours from"},
	{Field: FieldOpeningHoursTo, Label: "Opening hours to"},
	{Field: FieldStatus, Label: "Status"},
}

// Lookup returns the table entry of a target field.
func Lookup(f TargetField) (FieldSpec, bool) {
	for _, def := range TargetFields {
		if def.Field == f {
			return def, true
		}
	}
	return FieldSpec{}, false
}

// Label returns the display label of f, or f itself when unknown.
func Label(f TargetField) string {
	if def, ok := Lookup(f); ok {
		return def.Label
	}
	return string(f)
}

// RequiredFields returns the required target fields in table order.
func RequiredFields() []TargetField {
	var out []TargetField
	for _, def := range TargetFields {
		if def.Required {
			out = append(out, def.Field)
		}
	}
	return out
}

// IsKnown reports whether f is a target field or the ignore sentinel.
func IsKnown(f TargetField) bool {
	if f == FieldIgnore {
		return true
	}
	_, ok := Lookup(f)
	return ok
}

var headerStripPattern = regexp.MustCompile(`[^a-zäöüß0-9]`)

// normalizeHeader lower-cases a header and keeps only letters (including
// German umlauts and ß) and digits.
func normalizeHeader(h string) string {
	return headerStripPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), "")
}
