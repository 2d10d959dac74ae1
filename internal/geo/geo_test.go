package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	zurich = domain.Coordinates{Latitude: 47.3769, Longitude: 8.5417}
	bern   = domain.Coordinates{Latitude: 46.9480, Longitude: 7.4474}
	geneva = domain.Coordinates{Latitude: 46.2044, Longitude: 6.1432}
	basel  = domain.Coordinates{Latitude: 47.5596, Longitude: 7.5886}
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, Distance(zurich, zurich))
	assert.InDelta(t, 95.5, Distance(zurich, bern), 1.0)
	assert.InDelta(t, Distance(zurich, bern), Distance(bern, zurich), 1e-9)

	// A quarter of a meridian
	pole := domain.Coordinates{Latitude: 90, Longitude: 0}
	equator := domain.Coordinates{Latitude: 0, Longitude: 0}
	assert.InDelta(t, EarthRadiusKm*3.141592653589793/2, Distance(equator, pole), 1e-6)
}

func TestDistance_SortIgnoresInputOrder(t *testing.T) {
	points := []domain.Coordinates{geneva, bern, basel, zurich}
	sorted := func(in []domain.Coordinates) []domain.Coordinates {
		out := append([]domain.Coordinates(nil), in...)
		sort.SliceStable(out, func(i, j int) bool {
			return Distance(zurich, out[i]) < Distance(zurich, out[j])
		})
		return out
	}
	want := sorted(points)
	assert.Equal(t, []domain.Coordinates{zurich, basel, bern, geneva}, want)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.Coordinates(nil), points...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, sorted(shuffled))
	}
}

func TestNominatim_Geocode(t *testing.T) {
	var gotQuery, gotAgent, gotCountries string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		gotCountries = r.URL.Query().Get("countrycodes")

		switch gotQuery {
		case "8001":
			w.Write([]byte(`[{"lat":"47.3769","lon":"8.5417","display_name":"Zürich"}]`))
		case "busy":
			w.WriteHeader(http.StatusTooManyRequests)
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	n, err := NewNominatim(NominatimConfig{
		BaseURL:      srv.URL + "/",
		UserAgent:    "Storefinder/test",
		CountryCodes: "ch,de",
	}, discardLogger())
	require.NoError(t, err)

	c, err := n.Geocode(context.Background(), " 8001 ")
	require.NoError(t, err)
	assert.InDelta(t, 47.3769, c.Latitude, 1e-9)
	assert.InDelta(t, 8.5417, c.Longitude, 1e-9)
	assert.Equal(t, "8001", gotQuery)
	assert.Equal(t, "Storefinder/test", gotAgent)
	assert.Equal(t, "ch,de", gotCountries)

	_, err = n.Geocode(context.Background(), "Nirgendwo")
	assert.ErrorIs(t, err, ErrNoResult)

	_, err = n.Geocode(context.Background(), "busy")
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.True(t, IsRetryable(err))

	_, err = n.Geocode(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = n.Geocode(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestNewNominatim_RequiresUserAgent(t *testing.T) {
	_, err := NewNominatim(NominatimConfig{BaseURL: "http://localhost"}, discardLogger())
	assert.Error(t, err)
}

func TestOSRM_Route(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":125000,"duration":5400,
			"geometry":{"coordinates":[[8.5417,47.3769],[7.9,47.1],[7.4474,46.948]]}}]}`))
	}))
	defer srv.Close()

	o, err := NewOSRM(OSRMConfig{BaseURL: srv.URL}, discardLogger())
	require.NoError(t, err)

	route, err := o.Route(context.Background(), zurich, bern)
	require.NoError(t, err)

	assert.Equal(t, "/route/v1/driving/8.5417,47.3769;7.4474,46.948", gotPath)
	assert.InDelta(t, 125.0, route.DistanceKm, 1e-9)
	assert.InDelta(t, 90.0, route.DurationMin, 1e-9)
	require.Len(t, route.Geometry, 3)
	assert.Equal(t, [2]float64{47.3769, 8.5417}, route.Geometry[0], "points are converted to lat/lng")
	assert.Equal(t, [2]float64{46.948, 7.4474}, route.Geometry[2])
}

func TestOSRM_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"no route", http.StatusBadRequest, `{"code":"NoRoute","message":"Impossible route"}`, ErrNoRoute},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`, ErrNoRoute},
		{"rate limited", http.StatusTooManyRequests, ``, ErrRateLimit},
		{"server error", http.StatusInternalServerError, ``, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			o, err := NewOSRM(OSRMConfig{BaseURL: srv.URL}, discardLogger())
			require.NoError(t, err)
			_, err = o.Route(context.Background(), zurich, bern)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOSRM_Cancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	o, err := NewOSRM(OSRMConfig{BaseURL: srv.URL}, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = o.Route(ctx, zurich, bern)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Cache and throttle
// =============================================================================

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]domain.Coordinates
	failGet bool
}

func (m *memoryCache) Get(ctx context.Context, key string) (domain.Coordinates, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return domain.Coordinates{}, false, errors.New("cache down")
	}
	c, ok := m.entries[key]
	return c, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, c domain.Coordinates, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = c
	return nil
}

type countingGeocoder struct {
	calls  int
	result domain.Coordinates
	err    error
}

func (g *countingGeocoder) Geocode(ctx context.Context, query string) (domain.Coordinates, error) {
	g.calls++
	return g.result, g.err
}

func TestCachedGeocoder(t *testing.T) {
	next := &countingGeocoder{result: zurich}
	cache := &memoryCache{entries: map[string]domain.Coordinates{}}
	g := NewCachedGeocoder(next, cache, time.Hour, discardLogger())

	c, err := g.Geocode(context.Background(), "Bahnhofstrasse  12, Zürich")
	require.NoError(t, err)
	assert.Equal(t, zurich, c)

	c, err = g.Geocode(context.Background(), "bahnhofstrasse 12,  zürich")
	require.NoError(t, err)
	assert.Equal(t, zurich, c)
	assert.Equal(t, 1, next.calls, "second lookup is served from the cache")

	cache.failGet = true
	_, err = g.Geocode(context.Background(), "bahnhofstrasse 12, zürich")
	require.NoError(t, err, "cache failures fall through to the geocoder")
	assert.Equal(t, 2, next.calls)
}

func TestCachedGeocoder_MissesAreNotCached(t *testing.T) {
	next := &countingGeocoder{err: ErrNoResult}
	cache := &memoryCache{entries: map[string]domain.Coordinates{}}
	g := NewCachedGeocoder(next, cache, time.Hour, discardLogger())

	_, err := g.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Empty(t, cache.entries)
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, th.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	th = NewThrottle(time.Hour)
	require.NoError(t, th.Wait(context.Background()), "first call never waits")
	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)
}

func TestThrottle_CancelledWaitersReturnTheirSlots(t *testing.T) {
	th := NewThrottle(time.Second)
	require.NoError(t, th.Wait(context.Background()))

	const waiters = 5
	cancels := make([]context.CancelFunc, waiters)
	done := make([]chan error, waiters)
	for i := 0; i < waiters; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancels[i] = cancel
		done[i] = make(chan error, 1)
		go func(ch chan error) { ch <- th.Wait(ctx) }(done[i])

		queued := -float64(i) - 0.5
		require.Eventually(t, func() bool { return th.limiter.Tokens() < queued },
			time.Second, time.Millisecond, "waiter %d never queued", i)
	}
	for i := waiters - 1; i >= 0; i-- {
		cancels[i]()
		assert.ErrorIs(t, <-done[i], context.Canceled)
	}

	// five stale slots would push the next one out by six seconds and fail
	// against this deadline immediately
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, th.Wait(ctx))
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestThrottle_ShortDeadlineFailsWithoutTakingSlot(t *testing.T) {
	th := NewThrottle(time.Hour)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.Error(t, th.Wait(ctx))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "no point waiting for a slot past the deadline")
	assert.InDelta(t, 0, th.limiter.Tokens(), 0.01)
}
