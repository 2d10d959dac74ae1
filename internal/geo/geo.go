// Package geo wraps the external geodesy services: forward geocoding of
// free-text addresses and driving routes between two points. It also holds
// the great-circle distance used for radius filtering.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/DukeRupert/storefinder/internal/domain"
)

// EarthRadiusKm is the mean earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometers between a and b
// using the Haversine formula.
func Distance(a, b domain.Coordinates) float64 {
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Latitude))*math.Cos(radians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Geocoder resolves a free-text address to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (domain.Coordinates, error)
}

// Router computes a driving route between two coordinates.
type Router interface {
	Route(ctx context.Context, from, to domain.Coordinates) (*Route, error)
}

// Route is a driving route. Geometry points are [lat, lng].
type Route struct {
	Geometry    [][2]float64 `json:"geometry"`
	DistanceKm  float64      `json:"distance_km"`
	DurationMin float64      `json:"duration_min"`
}

// Error values returned by geocoders and routers
var (
	// ErrNoResult means the geocoder found nothing for the query
	ErrNoResult = errors.New("no geocoding result")

	// ErrNoRoute means the router could not connect the two points
	ErrNoRoute = errors.New("no route found")

	// ErrRateLimit means the upstream asked us to slow down
	ErrRateLimit = errors.New("upstream rate limit exceeded")

	// ErrUnavailable covers network failures and 5xx responses
	ErrUnavailable = errors.New("upstream service unavailable")
)

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}

// WrapError wraps an error with the geo operation that produced it.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("geo %s: %w", operation, err)
}
