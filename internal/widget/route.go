package widget

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/geo"
)

// ErrSuperseded is returned to a route request that a newer request of the
// same session replaced. Its result must not be shown.
var ErrSuperseded = errors.New("route request superseded")

// RouteController serializes the route requests of one widget session: a
// new request cancels the one in flight, and only the latest request may
// deliver a result.
type RouteController struct {
	router geo.Router

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewRouteController creates a controller around router.
func NewRouteController(router geo.Router) *RouteController {
	return &RouteController{router: router}
}

// Request computes a route, superseding any pending request.
func (c *RouteController) Request(ctx context.Context, from, to domain.Coordinates) (*geo.Route, error) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	mine := c.seq
	c.cancel = cancel
	c.mu.Unlock()

	route, err := c.router.Route(ctx, from, to)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != mine {
		cancel()
		return nil, ErrSuperseded
	}
	c.cancel = nil
	cancel()
	if err != nil {
		return nil, err
	}
	return route, nil
}

// Cancel aborts the pending request, if any.
func (c *RouteController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
}

// RouteRegistry hands out one RouteController per widget session id.
type RouteRegistry struct {
	router  geo.Router
	maxIdle time.Duration

	mu          sync.Mutex
	controllers map[string]*registryEntry
}

type registryEntry struct {
	ctrl     *RouteController
	lastUsed time.Time
}

// NewRouteRegistry creates a registry. Controllers idle longer than maxIdle
// are dropped by Sweep.
func NewRouteRegistry(router geo.Router, maxIdle time.Duration) *RouteRegistry {
	return &RouteRegistry{
		router:      router,
		maxIdle:     maxIdle,
		controllers: make(map[string]*registryEntry),
	}
}

// For returns the controller of session. An empty session gets a fresh,
// unshared controller.
func (r *RouteRegistry) For(session string) *RouteController {
	if session == "" {
		return NewRouteController(r.router)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.controllers[session]
	if !ok {
		e = &registryEntry{ctrl: NewRouteController(r.router)}
		r.controllers[session] = e
	}
	e.lastUsed = time.Now()
	return e.ctrl
}

// Sweep drops idle controllers and returns how many were removed.
func (r *RouteRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.controllers {
		if now.Sub(e.lastUsed) > r.maxIdle {
			delete(r.controllers, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (r *RouteRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}
