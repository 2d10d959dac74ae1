package csvimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStreet(t *testing.T) {
	tests := []struct {
		in, street, number string
	}{
		{"Bahnhofstrasse 42", "Bahnhofstrasse", "42"},
		{"Route de Lausanne 5a", "Route de Lausanne", "5a"},
		{"Hauptstr. 10-12", "Hauptstr.", "10-12"},
		{"  Seestrasse   7 ", "Seestrasse", "7"},
		{"Strasse 1 2", "Strasse 1", "2"},
		{"Postfach", "Postfach", ""},
		{"42", "42", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			street, number := SplitStreet(tt.in)
			assert.Equal(t, tt.street, street)
			assert.Equal(t, tt.number, number)
		})
	}
}

func addressRows(values ...string) []RawRow {
	rows := make([]RawRow, len(values))
	for i, v := range values {
		rows[i] = RawRow{Line: i + 1, Values: map[string]string{"Name": "Row", "Adresse": v}}
	}
	return rows
}

func TestSplitAddressColumn_Threshold(t *testing.T) {
	headers := []string{"Name", "Adresse"}

	t.Run("two of ten match", func(t *testing.T) {
		rows := addressRows(
			"Bahnhofstrasse 12", "Seeweg 3",
			"Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum",
		)
		res := SplitAddressColumn(headers, rows)

		assert.Equal(t, []string{"Name", "Straße", "Hausnummer"}, res.Headers)
		assert.Contains(t, res.Note, "Adresse")
		assert.Equal(t, "Bahnhofstrasse", res.Rows[0].Values["Straße"])
		assert.Equal(t, "12", res.Rows[0].Values["Hausnummer"])
		assert.Equal(t, "Zentrum", res.Rows[2].Values["Straße"])
		assert.Equal(t, "", res.Rows[2].Values["Hausnummer"])
		assert.NotContains(t, res.Rows[0].Values, "Adresse")
		assert.Equal(t, "Row", res.Rows[0].Values["Name"])
	})

	t.Run("one of ten matches", func(t *testing.T) {
		rows := addressRows(
			"Bahnhofstrasse 12",
			"Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum",
		)
		res := SplitAddressColumn(headers, rows)

		assert.Equal(t, headers, res.Headers)
		assert.Empty(t, res.Note)
		assert.Equal(t, "Bahnhofstrasse 12", res.Rows[0].Values["Adresse"])
	})

	t.Run("single row needs one match", func(t *testing.T) {
		res := SplitAddressColumn(headers, addressRows("Seeweg 3"))
		assert.NotEmpty(t, res.Note)
	})

	t.Run("only the first ten rows are sampled", func(t *testing.T) {
		values := []string{"Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum", "Zentrum",
			"Seeweg 3", "Seeweg 4"}
		res := SplitAddressColumn(headers, addressRows(values...))
		assert.Empty(t, res.Note)
	})
}

func TestSplitAddressColumn_Skips(t *testing.T) {
	t.Run("house number column exists", func(t *testing.T) {
		headers := []string{"Strasse", "Nr"}
		rows := []RawRow{
			{Line: 1, Values: map[string]string{"Strasse": "Seeweg 3", "Nr": ""}},
			{Line: 2, Values: map[string]string{"Strasse": "Seeweg 4", "Nr": ""}},
		}
		res := SplitAddressColumn(headers, rows)
		assert.Empty(t, res.Note)
		assert.Equal(t, headers, res.Headers)
	})

	t.Run("no address column", func(t *testing.T) {
		headers := []string{"Name", "Ort"}
		rows := []RawRow{{Line: 1, Values: map[string]string{"Name": "A 1", "Ort": "B 2"}}}
		res := SplitAddressColumn(headers, rows)
		assert.Empty(t, res.Note)
	})

	t.Run("column keeps its position", func(t *testing.T) {
		headers := []string{"Name", "Full Address", "PLZ"}
		rows := []RawRow{
			{Line: 1, Values: map[string]string{"Name": "A", "Full Address": "Seeweg 3", "PLZ": "8000"}},
			{Line: 2, Values: map[string]string{"Name": "B", "Full Address": "Seeweg 4", "PLZ": "8001"}},
		}
		res := SplitAddressColumn(headers, rows)
		assert.Equal(t, []string{"Name", "Straße", "Hausnummer", "PLZ"}, res.Headers)
		assert.Equal(t, "8001", res.Rows[1].Values["PLZ"])
	})
}
