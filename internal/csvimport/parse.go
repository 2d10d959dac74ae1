package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
)

// Limits bounds what Parse accepts.
type Limits struct {
	MaxBytes int64 // file size ceiling
	MaxRows  int   // data rows after the header
}

// DefaultLimits are 5 MiB and 1000 rows.
var DefaultLimits = Limits{MaxBytes: 5 * 1024 * 1024, MaxRows: domain.MaxImportBatch}

// File is a parsed upload after header deduplication, empty row removal
// and address splitting.
type File struct {
	Name      string   `json:"name"`
	Headers   []string `json:"headers"`
	Rows      []RawRow `json:"-"`
	SplitNote string   `json:"split_note,omitempty"`
}

// Parse reads a CSV upload. size is the declared size of the upload; the
// reader is also capped so an undeclared size cannot exceed the limit.
func Parse(name string, r io.Reader, size int64, limits Limits) (*File, error) {
	const op = "csvimport.Parse"

	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return nil, domain.Invalid(op, "Please choose a .csv file")
	}
	if size > limits.MaxBytes {
		return nil, domain.TooLarge(op, fmt.Sprintf("The file is too large (max %d MB)", limits.MaxBytes/(1024*1024)))
	}

	data, err := io.ReadAll(io.LimitReader(r, limits.MaxBytes+1))
	if err != nil {
		return nil, domain.Invalid(op, "Could not read the file")
	}
	if int64(len(data)) > limits.MaxBytes {
		return nil, domain.TooLarge(op, fmt.Sprintf("The file is too large (max %d MB)", limits.MaxBytes/(1024*1024)))
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.Invalid(op, "No column headers found in the file")
	}
	if err != nil {
		return nil, domain.Invalid(op, "CSV parsing failed: "+err.Error())
	}
	if len(header) == 0 || (len(header) == 1 && strings.TrimSpace(header[0]) == "") {
		return nil, domain.Invalid(op, "No column headers found in the file")
	}
	headers := DeduplicateHeaders(header)

	var rows []RawRow
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.Invalid(op, "CSV parsing failed: "+err.Error())
		}
		// Blank lines are skipped before counting.
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		line++
		if line > limits.MaxRows {
			return nil, domain.Invalid(op, fmt.Sprintf("Too many rows. At most %d rows are allowed", limits.MaxRows))
		}

		values := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				values[h] = strings.TrimSpace(record[i])
			} else {
				values[h] = ""
			}
		}
		rows = append(rows, RawRow{Line: line, Values: values})
	}

	if len(rows) == 0 {
		return nil, domain.Invalid(op, "No data to import (header row only)")
	}

	nonEmpty := rows[:0]
	for _, r := range rows {
		if !r.IsEmpty() {
			nonEmpty = append(nonEmpty, r)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, domain.Invalid(op, "No data to import (all rows are empty)")
	}

	split := SplitAddressColumn(headers, nonEmpty)
	return &File{
		Name:      filepath.Base(name),
		Headers:   split.Headers,
		Rows:      split.Rows,
		SplitNote: split.Note,
	}, nil
}

// DeduplicateHeaders trims headers, names blank ones "Spalte" and suffixes
// repeats with " (n)".
func DeduplicateHeaders(headers []string) []string {
	counts := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Spalte"
		}
		counts[h]++
		if counts[h] > 1 {
			out[i] = fmt.Sprintf("%s (%d)", h, counts[h])
			continue
		}
		out[i] = h
	}
	return out
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab in the
// first line, ignoring quoted sections. Comma wins ties.
func sniffDelimiter(data []byte) rune {
	first, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	counts := map[rune]int{}
	inQuotes := false
	for _, r := range first {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && (r == ',' || r == ';' || r == '\t'):
			counts[r]++
		}
	}
	best := ','
	for _, r := range []rune{';', '\t'} {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best
}
