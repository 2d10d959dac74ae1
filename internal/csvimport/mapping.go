package csvimport

import (
	"fmt"
	"regexp"
)

// Mapping assigns one source column to a target field or to FieldIgnore.
type Mapping struct {
	Column string      `json:"column"`
	Target TargetField `json:"target"`
}

// heuristics is checked in order; earlier entries win.
var heuristics = []struct {
	pattern *regexp.Regexp
	field   TargetField
}{
	{regexp.MustCompile(`^(name|firmenname|firma|bezeichnung|standort)$`), FieldName},
	{regexp.MustCompile(`^(strasse|str|straße|adresse|address|street)$`), FieldStreet},
	{houseNumberPattern, FieldHouseNumber},
	{regexp.MustCompile(`^(plz|postleitzahl|zip|zipcode|postal)$`), FieldPostalCode},
	{regexp.MustCompile(`^(ort|stadt|city|gemeinde|ortschaft|town)$`), FieldCity},
	{regexp.MustCompile(`^(telefon|tel|phone|fon|telefonnummer)$`), FieldPhone},
	{regexp.MustCompile(`^(land|country|staat)$`), FieldCountry},
	{regexp.MustCompile(`^(email|mail|emailadresse|emailaddress)$`), FieldEmail},
	{regexp.MustCompile(`^(website|web|url|homepage|webseite)$`), FieldWebsite},
	{regexp.MustCompile(`^(notfallnummer|notfall|emergency|pikett)$`), FieldEmergencyPhone},
	{regexp.MustCompile(`^(latitude|lat|breitengrad)$`), FieldLatitude},
	{regexp.MustCompile(`^(longitude|lng|lon|längengrad|laengengrad)$`), FieldLongitude},
	{regexp.MustCompile(`^(status)$`), FieldStatus},
	{regexp.MustCompile(`^(öffnungszeitentyp|oeffnungszeitentyp|typ)$`), FieldOpeningHoursType},
	{regexp.MustCompile(`^(öffnungszeitenvon|oeffnungszeitenvon|von|openfrom)$`), FieldOpeningHoursFrom},
	{regexp.MustCompile(`^(öffnungszeitenbis|oeffnungszeitenbis|bis|opento)$`), FieldOpeningHoursTo},
}

// GuessTargetField returns the first heuristic match for column whose field
// is not yet claimed, or FieldIgnore. It does not modify claimed.
func GuessTargetField(column string, claimed map[TargetField]bool) TargetField {
	h := normalizeHeader(column)
	for _, rule := range heuristics {
		if rule.pattern.MatchString(h) && !claimed[rule.field] {
			return rule.field
		}
	}
	return FieldIgnore
}

// AutoMap guesses a mapping for every header, claiming fields left to right.
func AutoMap(headers []string) []Mapping {
	claimed := make(map[TargetField]bool)
	out := make([]Mapping, len(headers))
	for i, h := range headers {
		target := GuessTargetField(h, claimed)
		if target != FieldIgnore {
			claimed[target] = true
		}
		out[i] = Mapping{Column: h, Target: target}
	}
	return out
}

// MappedFields returns the set of claimed target fields.
func MappedFields(mappings []Mapping) map[TargetField]bool {
	set := make(map[TargetField]bool, len(mappings))
	for _, m := range mappings {
		if m.Target != FieldIgnore {
			set[m.Target] = true
		}
	}
	return set
}

// MissingRequired returns the required fields no column is mapped to.
func MissingRequired(mappings []Mapping) []TargetField {
	mapped := MappedFields(mappings)
	var missing []TargetField
	for _, f := range RequiredFields() {
		if !mapped[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// CheckMappings verifies that mappings cover exactly the given headers, once
// each, with known targets. A field claimed twice is allowed; the last
// column wins when rows are mapped.
func CheckMappings(headers []string, mappings []Mapping) error {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	seen := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if !known[m.Column] {
			return fmt.Errorf("unknown column %q", m.Column)
		}
		if seen[m.Column] {
			return fmt.Errorf("column %q is mapped more than once", m.Column)
		}
		seen[m.Column] = true
		if !IsKnown(m.Target) {
			return fmt.Errorf("unknown target field %q", m.Target)
		}
	}
	if len(seen) != len(headers) {
		return fmt.Errorf("every column needs a mapping")
	}

	mapped := MappedFields(mappings)
	if mapped[FieldLatitude] != mapped[FieldLongitude] {
		return fmt.Errorf("latitude and longitude must be mapped together")
	}
	return nil
}
