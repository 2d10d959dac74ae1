package csvimport

import (
	"fmt"
	"regexp"
	"strings"
)

// Headers produced when an address column is split.
const (
	SplitStreetHeader      = "Straße"
	SplitHouseNumberHeader = "Hausnummer"
)

const splitSampleSize = 10

var (
	houseNumberPattern   = regexp.MustCompile(`^(hausnummer|hausnr|hnr|nr|number)$`)
	addressColumnPattern = regexp.MustCompile(`^(strasse|str|straße|adresse|address|street|strassehausnummer|straßehausnummer|strassenr|straßenr|adressekomplett|fulladdress)$`)

	// Lazy prefix, whitespace, then a token that starts with a digit.
	streetSplitPattern  = regexp.MustCompile(`^(.+?)\s+(\d\S*)$`)
	combinedAddressLike = regexp.MustCompile(`^.+\s+\d\S*$`)
)

// SplitStreet separates a trailing house number ("42", "5a", "10-12") from
// the street. Values without one come back whole as the street.
func SplitStreet(value string) (street, houseNumber string) {
	v := strings.TrimSpace(value)
	if m := streetSplitPattern.FindStringSubmatch(v); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return v, ""
}

// SplitResult is the outcome of SplitAddressColumn. Note is empty when no
// column was split, in which case Headers and Rows are the inputs.
type SplitResult struct {
	Headers []string
	Rows    []RawRow
	Note    string
}

// SplitAddressColumn replaces a combined "street + number" column with
// separate street and house number columns. It does nothing when a house
// number column already exists, when no address-like column exists, or when
// fewer than min(2, sample size) of the first ten values look combined.
func SplitAddressColumn(headers []string, rows []RawRow) SplitResult {
	unchanged := SplitResult{Headers: headers, Rows: rows}

	for _, h := range headers {
		if houseNumberPattern.MatchString(normalizeHeader(h)) {
			return unchanged
		}
	}

	idx := -1
	for i, h := range headers {
		if addressColumnPattern.MatchString(normalizeHeader(h)) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return unchanged
	}
	column := headers[idx]

	sample := rows
	if len(sample) > splitSampleSize {
		sample = sample[:splitSampleSize]
	}
	matches := 0
	for _, r := range sample {
		if combinedAddressLike.MatchString(strings.TrimSpace(r.Values[column])) {
			matches++
		}
	}
	if matches < min(2, len(sample)) {
		return unchanged
	}

	newHeaders := make([]string, 0, len(headers)+1)
	newHeaders = append(newHeaders, headers[:idx]...)
	newHeaders = append(newHeaders, SplitStreetHeader, SplitHouseNumberHeader)
	newHeaders = append(newHeaders, headers[idx+1:]...)

	newRows := make([]RawRow, len(rows))
	for i, r := range rows {
		values := make(map[string]string, len(r.Values)+1)
		for k, v := range r.Values {
			if k != column {
				values[k] = v
			}
		}
		values[SplitStreetHeader], values[SplitHouseNumberHeader] = SplitStreet(r.Values[column])
		newRows[i] = RawRow{Line: r.Line, Values: values}
	}

	return SplitResult{
		Headers: newHeaders,
		Rows:    newRows,
		Note:    fmt.Sprintf("Column «%s» was split into %s and %s.", column, SplitStreetHeader, SplitHouseNumberHeader),
	}
}
