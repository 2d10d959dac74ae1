package domain

import (
	"regexp"
	"strings"
	"time"
)

// MapProvider selects the tile source of the public widget.
type MapProvider string

const (
	MapProviderOpenStreetMap MapProvider = "openstreetmap"
	MapProviderGoogleMaps    MapProvider = "google_maps"
)

// IsValid returns true if the provider is a recognized value.
func (p MapProvider) IsValid() bool {
	return p == MapProviderOpenStreetMap || p == MapProviderGoogleMaps
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// WidgetConfig is the single configuration row for the public widget.
type WidgetConfig struct {
	MapProvider      MapProvider `json:"map_provider"`
	GoogleMapsAPIKey string      `json:"google_maps_api_key,omitempty"`
	DefaultLanguage  string      `json:"default_language"`
	PrimaryColor     string      `json:"primary_color"`
	DefaultRadiusKm  int         `json:"default_radius_km"`
	DefaultCenterLat float64     `json:"default_center_lat"`
	DefaultCenterLng float64     `json:"default_center_lng"`
	DefaultZoom      int         `json:"default_zoom"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// DefaultWidgetConfig is used until an operator saves a configuration.
func DefaultWidgetConfig() WidgetConfig {
	return WidgetConfig{
		MapProvider:      MapProviderOpenStreetMap,
		DefaultLanguage:  "de",
		PrimaryColor:     "#E30613",
		DefaultRadiusKm:  50,
		DefaultCenterLat: 46.8182,
		DefaultCenterLng: 8.2275,
		DefaultZoom:      8,
	}
}

// Public returns a copy that is safe to send to anonymous clients.
func (c WidgetConfig) Public() WidgetConfig {
	c.GoogleMapsAPIKey = ""
	return c
}

// Validate checks the configuration before it is stored.
func (c *WidgetConfig) Validate(op string) error {
	var ve *ValidationError
	add := func(field, msg string) {
		if ve == nil {
			ve = NewValidationError(op, field, msg)
			return
		}
		AddFieldError(ve, field, msg)
	}

	if !c.MapProvider.IsValid() {
		add("map_provider", "Map provider must be openstreetmap or google_maps")
	}
	if c.MapProvider == MapProviderGoogleMaps && strings.TrimSpace(c.GoogleMapsAPIKey) == "" {
		add("google_maps_api_key", "Google Maps requires an API key")
	}
	switch c.DefaultLanguage {
	case "de", "fr", "it":
	default:
		add("default_language", "Default language must be de, fr or it")
	}
	if !hexColorPattern.MatchString(c.PrimaryColor) {
		add("primary_color", "Primary color must be a hex color like #E30613")
	}
	if c.DefaultRadiusKm < 1 || c.DefaultRadiusKm > 500 {
		add("default_radius_km", "Default radius must be between 1 and 500 km")
	}
	if !(Coordinates{Latitude: c.DefaultCenterLat, Longitude: c.DefaultCenterLng}).Valid() {
		add("default_center", "Default center is out of range")
	}
	if c.DefaultZoom < 4 || c.DefaultZoom > 18 {
		add("default_zoom", "Default zoom must be between 4 and 18")
	}

	if ve == nil {
		return nil
	}
	return ve
}

// Translation is a localized value for one field of one row.
type Translation struct {
	TableName string `json:"table_name"`
	RowID     string `json:"row_id"`
	FieldName string `json:"field_name"`
	Language  string `json:"language"`
	Value     string `json:"value"`
}

// Translatable fields of service types.
const (
	TranslationTableServiceTypes = "service_types"
	TranslationFieldName         = "name"
)

// ServiceTypeParams creates or updates a capability tag. Name is the German
// base name; Translations maps "fr" and "it" to localized names.
type ServiceTypeParams struct {
	Name         string            `json:"name"`
	Icon         string            `json:"icon"`
	SortOrder    int               `json:"sort_order"`
	Translations map[string]string `json:"translations,omitempty"`
}

// Validate checks the tag parameters.
func (p *ServiceTypeParams) Validate(op string) error {
	var ve *ValidationError
	add := func(field, msg string) {
		if ve == nil {
			ve = NewValidationError(op, field, msg)
			return
		}
		AddFieldError(ve, field, msg)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		add("name", "Name is required")
	} else if len(name) > 100 {
		add("name", "Name must be 100 characters or less")
	}
	if len(p.Icon) > 50 {
		add("icon", "Icon must be 50 characters or less")
	}
	for lang := range p.Translations {
		if lang != "fr" && lang != "it" {
			add("translations", "Translations are only kept for fr and it")
			break
		}
	}

	if ve == nil {
		return nil
	}
	return ve
}
