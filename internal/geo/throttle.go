package geo

import (
	"context"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"golang.org/x/time/rate"
)

// Throttle spaces calls at least interval apart. A caller that gives up
// while waiting hands its slot back.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a Throttle. A zero interval never waits.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the caller may proceed or ctx is done. When ctx has a
// deadline that falls before the next free slot, Wait fails at once
// without taking the slot.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// ThrottledGeocoder applies a Throttle in front of a Geocoder, e.g. to honor
// the one request per second policy of the public Nominatim instance.
type ThrottledGeocoder struct {
	next     Geocoder
	throttle *Throttle
}

// NewThrottledGeocoder wraps next.
func NewThrottledGeocoder(next Geocoder, interval time.Duration) *ThrottledGeocoder {
	return &ThrottledGeocoder{next: next, throttle: NewThrottle(interval)}
}

// Geocode implements Geocoder.
func (g *ThrottledGeocoder) Geocode(ctx context.Context, query string) (domain.Coordinates, error) {
	if err := g.throttle.Wait(ctx); err != nil {
		return domain.Coordinates{}, WrapError("geocode", err)
	}
	return g.next.Geocode(ctx, query)
}
