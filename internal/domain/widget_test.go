package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWidgetConfig_IsValid(t *testing.T) {
	cfg := DefaultWidgetConfig()
	assert.NoError(t, cfg.Validate("test"))
}

func TestWidgetConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*WidgetConfig)
		field   string
		message string
	}{
		{"google without key", func(c *WidgetConfig) { c.MapProvider = MapProviderGoogleMaps }, "google_maps_api_key", "Google Maps requires an API key"},
		{"unknown provider", func(c *WidgetConfig) { c.MapProvider = "bing" }, "map_provider", "Map provider must be openstreetmap or google_maps"},
		{"unsupported language", func(c *WidgetConfig) { c.DefaultLanguage = "en" }, "default_language", "Default language must be de, fr or it"},
		{"short color", func(c *WidgetConfig) { c.PrimaryColor = "#fff" }, "primary_color", "Primary color must be a hex color like #E30613"},
		{"radius zero", func(c *WidgetConfig) { c.DefaultRadiusKm = 0 }, "default_radius_km", "Default radius must be between 1 and 500 km"},
		{"center off globe", func(c *WidgetConfig) { c.DefaultCenterLat = 91 }, "default_center", "Default center is out of range"},
		{"zoom too far out", func(c *WidgetConfig) { c.DefaultZoom = 2 }, "default_zoom", "Default zoom must be between 4 and 18"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultWidgetConfig()
			tt.modify(&cfg)

			var ve *ValidationError
			require.ErrorAs(t, cfg.Validate("WidgetService.SaveConfig"), &ve)
			assert.Equal(t, tt.message, ve.Fields[tt.field])
		})
	}
}

func TestWidgetConfig_PublicDropsAPIKey(t *testing.T) {
	cfg := DefaultWidgetConfig()
	cfg.MapProvider = MapProviderGoogleMaps
	cfg.GoogleMapsAPIKey = "AIza-secret"

	public := cfg.Public()

	assert.Empty(t, public.GoogleMapsAPIKey)
	assert.Equal(t, "AIza-secret", cfg.GoogleMapsAPIKey)
	assert.Equal(t, MapProviderGoogleMaps, public.MapProvider)
}

func TestServiceTypeParams_Validate(t *testing.T) {
	ok := ServiceTypeParams{Name: "Glasreparatur", Translations: map[string]string{"fr": "Réparation de vitres", "it": "Riparazione vetri"}}
	assert.NoError(t, ok.Validate("test"))

	blank := ServiceTypeParams{Name: "  "}
	assert.Equal(t, "Name is required", ErrorMessage(blank.Validate("test")))

	english := ServiceTypeParams{Name: "Glasreparatur", Translations: map[string]string{"en": "Glass repair"}}
	assert.Equal(t, "Translations are only kept for fr and it", ErrorMessage(english.Validate("test")))
}
