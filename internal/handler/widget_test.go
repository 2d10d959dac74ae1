package handler

import (
	"net/http"
	"testing"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/i18n"
	"github.com/DukeRupert/storefinder/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widgetRoutes(f *fakeWidgets) func(*http.ServeMux) {
	return func(mux *http.ServeMux) {
		NewWidgetHandler(f, testLogger()).RegisterRoutes(mux, passThrough, passThrough, passThrough, passThrough)
	}
}

func TestWidgetHandler_LocationsQuery(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := &fakeWidgets{cfg: domain.DefaultWidgetConfig()}
	rec := serve(widgetRoutes(f), jsonRequest(http.MethodGet,
		"/api/widget/locations?search=8001&services="+a.String()+","+b.String()+"&lat=47.37&lng=8.54&radius=10&page=2&limit=30&lang=fr", ""))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, f.query)
	assert.Equal(t, service.FeedQuery{
		Language: i18n.French,
		Search:   "8001",
		Services: []uuid.UUID{a, b},
		User:     &domain.Coordinates{Latitude: 47.37, Longitude: 8.54},
		RadiusKm: 10,
		Page:     2,
		Limit:    30,
	}, *f.query)
}

func TestWidgetHandler_FeedAndRouteAreLimited(t *testing.T) {
	reject := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	f := &fakeWidgets{cfg: domain.DefaultWidgetConfig()}
	routes := func(mux *http.ServeMux) {
		NewWidgetHandler(f, testLogger()).RegisterRoutes(mux, passThrough, reject, reject, passThrough)
	}

	assert.Equal(t, http.StatusTooManyRequests, serve(routes, jsonRequest(http.MethodGet, "/api/widget/locations?search=Z%C3%BCrich", "")).Code)
	assert.Nil(t, f.query)
	assert.Equal(t, http.StatusTooManyRequests, serve(routes, jsonRequest(http.MethodGet, "/api/widget/route?lat=47.3&lng=8.5", "")).Code)
	assert.Equal(t, http.StatusOK, serve(routes, jsonRequest(http.MethodGet, "/api/widget/config", "")).Code)
}

func TestWidgetHandler_LocationsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"lat without lng", "lat=47.3"},
		{"latitude out of range", "lat=120&lng=8"},
		{"not a number", "lat=abc&lng=8"},
		{"bad service id", "services=pikett"},
		{"bad radius", "radius=far"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeWidgets{}
			rec := serve(widgetRoutes(f), jsonRequest(http.MethodGet, "/api/widget/locations?"+tt.query, ""))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, f.query)
		})
	}
}

func TestWidgetHandler_LanguageResolution(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		header string
		cookie string
		cfg    string
		want   i18n.Language
	}{
		{"explicit parameter", "lang=IT", "fr-CH", "fr", "de", i18n.Italian},
		{"cookie before browser", "", "fr-CH", "it", "de", i18n.Italian},
		{"browser primary subtag", "", "fr-CH,de;q=0.8", "", "de", i18n.French},
		{"configured default", "", "en-US", "", "fr", i18n.French},
		{"unsupported parameter ignored", "lang=en", "", "", "de", i18n.German},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultWidgetConfig()
			cfg.DefaultLanguage = tt.cfg
			f := &fakeWidgets{cfg: cfg}

			req := jsonRequest(http.MethodGet, "/api/widget/locations?"+tt.query, "")
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: i18n.CookieName, Value: tt.cookie})
			}
			rec := serve(widgetRoutes(f), req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, f.query.Language)
		})
	}
}

func TestWidgetHandler_ExplicitLanguageIsRemembered(t *testing.T) {
	f := &fakeWidgets{cfg: domain.DefaultWidgetConfig()}
	rec := serve(widgetRoutes(f), jsonRequest(http.MethodGet, "/api/widget/strings?lang=fr", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), i18n.CookieName+"=fr")
	assert.Contains(t, rec.Body.String(), `"language":"fr"`)
	assert.Contains(t, rec.Body.String(), `"languages":["de","fr","it"]`)
}

func TestWidgetHandler_ConfigHidesAPIKey(t *testing.T) {
	cfg := domain.DefaultWidgetConfig()
	cfg.MapProvider = domain.MapProviderGoogleMaps
	cfg.GoogleMapsAPIKey = "AIza-secret"
	f := &fakeWidgets{cfg: cfg}

	public := serve(widgetRoutes(f), jsonRequest(http.MethodGet, "/api/widget/config", ""))
	require.Equal(t, http.StatusOK, public.Code)
	assert.NotContains(t, public.Body.String(), "AIza-secret")
	assert.Contains(t, public.Body.String(), `"map_provider":"google_maps"`)

	admin := serve(widgetRoutes(f), jsonRequest(http.MethodGet, "/api/widget/settings", ""))
	require.Equal(t, http.StatusOK, admin.Code)
	assert.Contains(t, admin.Body.String(), "AIza-secret")
}

func TestWidgetHandler_SaveSettings(t *testing.T) {
	f := &fakeWidgets{}
	rec := serve(widgetRoutes(f), jsonRequest(http.MethodPut, "/api/widget/settings",
		`{"map_provider":"openstreetmap","default_language":"it","primary_color":"#00AA00","default_radius_km":25,"default_center_lat":46.5,"default_center_lng":7.5,"default_zoom":9}`))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.saved)
	assert.Equal(t, "it", f.saved.DefaultLanguage)
	assert.Equal(t, 25, f.saved.DefaultRadiusKm)

	f = &fakeWidgets{err: domain.NewValidationError("WidgetService.SaveConfig", "default_zoom", "Zoom must be between 4 and 18")}
	rec = serve(widgetRoutes(f), jsonRequest(http.MethodPut, "/api/widget/settings", `{"default_zoom":30}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Zoom must be between 4 and 18", decodeError(t, rec).Error.Message)
}

func TestWidgetHandler_Route(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"found", "lat=47.37&lng=8.54&session=tab-1", nil, http.StatusOK},
		{"missing origin", "session=tab-1", nil, http.StatusBadRequest},
		{"superseded", "lat=47.37&lng=8.54&session=tab-1", domain.Conflict("WidgetService.Route", "Route request was superseded by a newer one"), http.StatusConflict},
		{"no route", "lat=47.37&lng=8.54", domain.Errorf(domain.ENOTFOUND, "WidgetService.Route", "No route found"), http.StatusNotFound},
		{"router down", "lat=47.37&lng=8.54", domain.Unavailable(assert.AnError, "WidgetService.Route", "Routing service is unavailable"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeWidgets{err: tt.err}
			rec := serve(widgetRoutes(f), jsonRequest(http.MethodGet, "/api/widget/route?"+tt.query, ""))
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "tab-1", f.session)
				assert.Equal(t, domain.Coordinates{Latitude: 47.37, Longitude: 8.54}, f.from)
			}
		})
	}
}

func TestWidgetHandler_Snippet(t *testing.T) {
	f := &fakeWidgets{}
	rec := serve(widgetRoutes(f), jsonRequest(http.MethodGet, "/api/widget/snippet?lang=FR&hide_switcher=true", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-lang=\"fr\"`)
	assert.Contains(t, body, `data-hide-lang-switcher=\"true\"`)
	assert.Contains(t, body, "https://finder.example.ch/widget/storefinder.js")
}
