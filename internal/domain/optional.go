package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Field is a value that may be absent. Set distinguishes "not supplied" from
// the zero value, so partial updates never overwrite data the caller did not
// send. A JSON null sets the field to its zero value.
type Field[T any] struct {
	Set   bool
	Value T
}

// Some returns a set field.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// UnmarshalJSON marks the field as set whenever the key is present.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.Value = zero
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

// MarshalJSON writes the value, or null when unset.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// LocationPatch is a partial location update. Only set fields are written.
// Empty strings for nullable contact fields are stored as NULL.
type LocationPatch struct {
	Name             Field[string]           `json:"name"`
	Street           Field[string]           `json:"street"`
	HouseNumber      Field[string]           `json:"house_number"`
	PostalCode       Field[string]           `json:"postal_code"`
	City             Field[string]           `json:"city"`
	Country          Field[string]           `json:"country"`
	Phone            Field[string]           `json:"phone"`
	EmergencyPhone   Field[string]           `json:"emergency_phone"`
	Email            Field[string]           `json:"email"`
	Website          Field[string]           `json:"website"`
	ImageURL         Field[string]           `json:"image_url"`
	Latitude         Field[*float64]         `json:"latitude"`
	Longitude        Field[*float64]         `json:"longitude"`
	Status           Field[LocationStatus]   `json:"status"`
	OpeningHoursType Field[OpeningHoursType] `json:"opening_hours_type"`
	OpeningHoursFrom Field[string]           `json:"opening_hours_from"`
	OpeningHoursTo   Field[string]           `json:"opening_hours_to"`

	// ServiceTypeIDs replaces the whole tag set when set; untouched otherwise.
	ServiceTypeIDs Field[[]uuid.UUID] `json:"service_type_ids"`
}

// PatchColumn is one assignment of a partial update.
type PatchColumn struct {
	Name  string
	Value any // nil means NULL
}

// Columns returns the set scalar fields in a fixed order, keyed by their
// database column. ServiceTypeIDs is not a column and is handled separately.
func (p *LocationPatch) Columns() []PatchColumn {
	var cols []PatchColumn
	text := func(name string, f Field[string], nullable bool) {
		if !f.Set {
			return
		}
		v := strings.TrimSpace(f.Value)
		if nullable && v == "" {
			cols = append(cols, PatchColumn{Name: name})
			return
		}
		cols = append(cols, PatchColumn{Name: name, Value: v})
	}
	coord := func(name string, f Field[*float64]) {
		if !f.Set {
			return
		}
		if f.Value == nil {
			cols = append(cols, PatchColumn{Name: name})
			return
		}
		cols = append(cols, PatchColumn{Name: name, Value: *f.Value})
	}

	text("name", p.Name, false)
	text("street", p.Street, false)
	text("house_number", p.HouseNumber, false)
	text("postal_code", p.PostalCode, false)
	text("city", p.City, false)
	text("country", p.Country, false)
	text("phone", p.Phone, false)
	text("emergency_phone", p.EmergencyPhone, true)
	text("email", p.Email, true)
	text("website", p.Website, true)
	text("image_url", p.ImageURL, true)
	coord("latitude", p.Latitude)
	coord("longitude", p.Longitude)
	if p.Status.Set {
		cols = append(cols, PatchColumn{Name: "status", Value: string(p.Status.Value)})
	}
	if p.OpeningHoursType.Set {
		cols = append(cols, PatchColumn{Name: "opening_hours_type", Value: string(p.OpeningHoursType.Value)})
	}
	text("opening_hours_from", p.OpeningHoursFrom, true)
	text("opening_hours_to", p.OpeningHoursTo, true)
	return cols
}

// IsEmpty reports whether the patch changes nothing.
func (p *LocationPatch) IsEmpty() bool {
	return len(p.Columns()) == 0 && !p.ServiceTypeIDs.Set
}

// Validate checks the set fields. Required text fields may not be blanked.
func (p *LocationPatch) Validate(op string) error {
	var ve *ValidationError
	add := func(field, msg string) {
		if ve == nil {
			ve = NewValidationError(op, field, msg)
			return
		}
		AddFieldError(ve, field, msg)
	}

	required := []struct {
		field, label string
		f            Field[string]
	}{
		{"name", "Name", p.Name},
		{"street", "Street", p.Street},
		{"postal_code", "Postal code", p.PostalCode},
		{"city", "City", p.City},
		{"country", "Country", p.Country},
		{"phone", "Phone", p.Phone},
	}
	for _, r := range required {
		if r.f.Set && strings.TrimSpace(r.f.Value) == "" {
			add(r.field, r.label+" must not be empty")
		}
	}
	if p.Status.Set && !p.Status.Value.IsValid() {
		add("status", fmt.Sprintf("Invalid status %q", p.Status.Value))
	}
	if p.OpeningHoursType.Set && !p.OpeningHoursType.Value.IsValid() {
		add("opening_hours_type", fmt.Sprintf("Invalid opening hours type %q", p.OpeningHoursType.Value))
	}
	if p.Email.Set && strings.TrimSpace(p.Email.Value) != "" && !IsValidEmail(p.Email.Value) {
		add("email", "Invalid email address")
	}
	if p.Website.Set && strings.TrimSpace(p.Website.Value) != "" && !IsValidWebsite(p.Website.Value) {
		add("website", "Invalid website URL")
	}
	if p.Latitude.Set != p.Longitude.Set ||
		(p.Latitude.Set && (p.Latitude.Value == nil) != (p.Longitude.Value == nil)) {
		add("coordinates", "Latitude and longitude must be set together")
	} else if p.Latitude.Set && p.Latitude.Value != nil {
		c := Coordinates{Latitude: *p.Latitude.Value, Longitude: *p.Longitude.Value}
		if !c.Valid() {
			add("coordinates", "Coordinates are out of range")
		}
	}

	if ve == nil {
		return nil
	}
	return ve
}

// CreateParams converts a fully populated patch into create parameters,
// applying the insert defaults for anything left unset.
func (p *LocationPatch) CreateParams(homeCountry string) CreateLocationParams {
	get := func(f Field[string]) string { return strings.TrimSpace(f.Value) }
	params := CreateLocationParams{
		Name:             get(p.Name),
		Street:           get(p.Street),
		HouseNumber:      get(p.HouseNumber),
		PostalCode:       get(p.PostalCode),
		City:             get(p.City),
		Country:          get(p.Country),
		Phone:            get(p.Phone),
		EmergencyPhone:   get(p.EmergencyPhone),
		Email:            get(p.Email),
		Website:          get(p.Website),
		ImageURL:         get(p.ImageURL),
		Status:           p.Status.Value,
		OpeningHoursType: p.OpeningHoursType.Value,
		OpeningHoursFrom: get(p.OpeningHoursFrom),
		OpeningHoursTo:   get(p.OpeningHoursTo),
		ServiceTypeIDs:   p.ServiceTypeIDs.Value,
	}
	if p.Latitude.Value != nil && p.Longitude.Value != nil {
		params.Coordinates = &Coordinates{Latitude: *p.Latitude.Value, Longitude: *p.Longitude.Value}
	}
	InsertDefaults.Apply(&params, homeCountry)
	return params
}
