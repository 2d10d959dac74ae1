package widget

import (
	"context"
	"regexp"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/geo"
)

var (
	postalCodePattern = regexp.MustCompile(`^\d{4,5}$`)
	placeNamePattern  = regexp.MustCompile(`^[a-zA-ZäöüÄÖÜéèêàâîôùûçñß\s]{3,}$`)
)

// LooksLikePlace reports whether a search text is worth geocoding: a 4 or 5
// digit postal code, or at least three letters and spaces.
func LooksLikePlace(text string) bool {
	return postalCodePattern.MatchString(text) || placeNamePattern.MatchString(text)
}

// DeriveLocation geocodes text when it looks like a place. Failures yield
// ok=false; the caller filters without a derived coordinate.
func DeriveLocation(ctx context.Context, g geo.Geocoder, text string) (domain.Coordinates, bool) {
	if g == nil || len([]rune(text)) < MinQueryLength || !LooksLikePlace(text) {
		return domain.Coordinates{}, false
	}
	c, err := g.Geocode(ctx, text)
	if err != nil {
		return domain.Coordinates{}, false
	}
	return c, true
}
