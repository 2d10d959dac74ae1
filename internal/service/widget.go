package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/geo"
	"github.com/DukeRupert/storefinder/internal/i18n"
	"github.com/DukeRupert/storefinder/internal/metrics"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/DukeRupert/storefinder/internal/widget"
	"github.com/google/uuid"
)

// Feed paging limits.
const (
	DefaultFeedLimit = 100
	MaxFeedLimit     = 500
)

// deriveLocationWait bounds how long a feed request waits for the shared
// geocoder before it filters without a derived coordinate.
const deriveLocationWait = time.Second

// FeedQuery is a request of the public widget feed.
type FeedQuery struct {
	Language i18n.Language
	Search   string
	Services []uuid.UUID
	User     *domain.Coordinates
	RadiusKm float64
	Page     int
	Limit    int
}

// Feed is one page of the public widget feed.
type Feed struct {
	Language   i18n.Language        `json:"language"`
	Locations  []widget.Match       `json:"locations"`
	Services   []domain.ServiceType `json:"services"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	TotalPages int                  `json:"total_pages"`

	// DerivedLocation is set when the search text was geocoded.
	DerivedLocation *domain.Coordinates `json:"derived_location,omitempty"`
}

// RouteResult is the nearest active location and the way there.
type RouteResult struct {
	Location   domain.Location `json:"location"`
	DistanceKm float64         `json:"distance_km"`
	Route      *geo.Route      `json:"route"`
}

// WidgetService serves the public widget and its configuration.
type WidgetService interface {
	// Feed returns mapped locations filtered by q. Tag names are translated
	// into q.Language where a translation exists.
	Feed(ctx context.Context, q FeedQuery) (*Feed, error)

	// Config returns the stored configuration or the defaults.
	Config(ctx context.Context) (domain.WidgetConfig, error)

	// SaveConfig validates and stores cfg.
	SaveConfig(ctx context.Context, cfg domain.WidgetConfig) (domain.WidgetConfig, error)

	// Route finds the nearest active location to from and a driving route to
	// it. A newer request with the same session cancels this one.
	Route(ctx context.Context, session string, from domain.Coordinates) (*RouteResult, error)

	// Snippet returns the embed HTML for opts.
	Snippet(opts widget.EmbedOptions) string
}

type widgetService struct {
	store      Store
	geocoder   geo.Geocoder
	deriveWait time.Duration
	routes     *widget.RouteRegistry
	baseURL    string
	logger     *slog.Logger
}

// NewWidgetService creates a new WidgetService. geocoder may be nil, in
// which case search text is never turned into a coordinate.
func NewWidgetService(store Store, geocoder geo.Geocoder, routes *widget.RouteRegistry, baseURL string, logger *slog.Logger) WidgetService {
	return &widgetService{
		store:      store,
		geocoder:   geocoder,
		deriveWait: deriveLocationWait,
		routes:     routes,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Feed runs the filter pipeline over every location that has coordinates.
// When no user coordinate is given and the search text looks like a postal
// code or place, the text is geocoded and a radius filter around the derived
// point is applied on top of the text filter.
func (s *widgetService) Feed(ctx context.Context, q FeedQuery) (*Feed, error) {
	const op = "WidgetService.Feed"

	if !q.Language.IsSupported() {
		q.Language = i18n.Default
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultFeedLimit
	}
	if q.Limit > MaxFeedLimit {
		q.Limit = MaxFeedLimit
	}
	search := domain.SanitizeSearch(q.Search)

	rows, err := s.store.ListMappedLocations(ctx, "")
	if err != nil {
		s.logger.Error("failed to list mapped locations", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}
	locs := repoLocationsToDomain(rows)
	if err := attachServices(ctx, s.store, locs); err != nil {
		s.logger.Error("failed to load location services", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}

	types, err := s.store.ListServiceTypes(ctx)
	if err != nil {
		s.logger.Error("failed to list service types", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}
	services := make([]domain.ServiceType, 0, len(types))
	for _, t := range types {
		services = append(services, repoServiceTypeToDomain(t))
	}

	names := translatedNames(ctx, s.store, q.Language, s.logger)
	translate(services, names)
	for i := range locs {
		translate(locs[i].Services, names)
	}

	f := widget.Filter{Query: search, Services: q.Services, User: q.User, RadiusKm: q.RadiusKm}
	feed := &Feed{Language: q.Language, Services: services, Page: q.Page, Limit: q.Limit}

	if q.User == nil && search != "" {
		if c, ok := s.deriveLocation(ctx, search); ok {
			f.User = &c
			if f.RadiusKm <= 0 {
				f.RadiusKm = s.defaultRadius(ctx)
			}
			feed.DerivedLocation = &c
		}
	}

	matches := widget.Apply(locs, f)
	feed.Total = len(matches)
	feed.TotalPages = (feed.Total + q.Limit - 1) / q.Limit

	start := (q.Page - 1) * q.Limit
	if start > len(matches) {
		start = len(matches)
	}
	end := start + q.Limit
	if end > len(matches) {
		end = len(matches)
	}
	feed.Locations = matches[start:end]
	return feed, nil
}

func (s *widgetService) deriveLocation(ctx context.Context, search string) (domain.Coordinates, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.deriveWait)
	defer cancel()
	return widget.DeriveLocation(ctx, s.geocoder, search)
}

func translate(types []domain.ServiceType, names map[uuid.UUID]string) {
	for i := range types {
		if v, ok := names[types[i].ID]; ok {
			types[i].Name = v
		}
	}
}

func (s *widgetService) defaultRadius(ctx context.Context) float64 {
	cfg, err := s.Config(ctx)
	if err != nil {
		return float64(domain.DefaultWidgetConfig().DefaultRadiusKm)
	}
	return float64(cfg.DefaultRadiusKm)
}

// Config returns the stored configuration.
func (s *widgetService) Config(ctx context.Context) (domain.WidgetConfig, error) {
	const op = "WidgetService.Config"

	row, err := s.store.GetWidgetConfig(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultWidgetConfig(), nil
		}
		s.logger.Error("failed to get widget config", "error", err, "op", op)
		return domain.WidgetConfig{}, domain.Store(err, op)
	}
	return repoWidgetConfigToDomain(row), nil
}

// SaveConfig stores cfg.
func (s *widgetService) SaveConfig(ctx context.Context, cfg domain.WidgetConfig) (domain.WidgetConfig, error) {
	const op = "WidgetService.SaveConfig"

	if err := cfg.Validate(op); err != nil {
		return domain.WidgetConfig{}, err
	}

	row, err := s.store.UpsertWidgetConfig(ctx, repository.UpsertWidgetConfigParams{
		MapProvider:      string(cfg.MapProvider),
		MapsApiKey:       toNullString(cfg.GoogleMapsAPIKey),
		DefaultLanguage:  cfg.DefaultLanguage,
		PrimaryColor:     cfg.PrimaryColor,
		DefaultRadiusKm:  int32(cfg.DefaultRadiusKm),
		DefaultCenterLat: cfg.DefaultCenterLat,
		DefaultCenterLng: cfg.DefaultCenterLng,
		DefaultZoom:      int32(cfg.DefaultZoom),
	})
	if err != nil {
		s.logger.Error("failed to save widget config", "error", err, "op", op)
		return domain.WidgetConfig{}, domain.Store(err, op)
	}

	s.logger.Info("widget config saved", "map_provider", cfg.MapProvider)
	return repoWidgetConfigToDomain(row), nil
}

// Route finds the nearest active location and routes to it.
func (s *widgetService) Route(ctx context.Context, session string, from domain.Coordinates) (*RouteResult, error) {
	const op = "WidgetService.Route"

	if !from.Valid() {
		return nil, domain.Invalid(op, "Coordinates are out of range")
	}

	rows, err := s.store.ListMappedLocations(ctx, "")
	if err != nil {
		s.logger.Error("failed to list mapped locations", "error", err, "op", op)
		return nil, domain.Store(err, op)
	}
	nearest, distance, ok := widget.NearestActive(repoLocationsToDomain(rows), from)
	if !ok {
		return nil, domain.Errorf(domain.ENOTFOUND, op, "No active location found")
	}

	route, err := s.routes.For(session).Request(ctx, from, *nearest.Coordinates)
	switch {
	case err == nil:
		metrics.RouteRequest("ok")
	case errors.Is(err, widget.ErrSuperseded):
		metrics.RouteRequest("superseded")
		return nil, domain.Conflict(op, "Route request was superseded by a newer one")
	case errors.Is(err, geo.ErrNoRoute):
		metrics.RouteRequest("no_route")
		return nil, domain.Errorf(domain.ENOTFOUND, op, "No route found")
	default:
		metrics.RouteRequest("error")
		s.logger.Warn("route lookup failed", "error", err, "op", op)
		return nil, domain.Unavailable(err, op, "Routing service is unavailable")
	}

	locs := []domain.Location{nearest}
	if err := attachServices(ctx, s.store, locs); err != nil {
		s.logger.Warn("failed to load location services", "error", err, "op", op)
	}
	return &RouteResult{Location: locs[0], DistanceKm: distance, Route: route}, nil
}

// Snippet returns the embed HTML.
func (s *widgetService) Snippet(opts widget.EmbedOptions) string {
	return widget.Snippet(s.baseURL, opts)
}

func repoWidgetConfigToDomain(c repository.WidgetConfig) domain.WidgetConfig {
	return domain.WidgetConfig{
		MapProvider:      domain.MapProvider(c.MapProvider),
		GoogleMapsAPIKey: fromNullString(c.MapsApiKey),
		DefaultLanguage:  c.DefaultLanguage,
		PrimaryColor:     c.PrimaryColor,
		DefaultRadiusKm:  int(c.DefaultRadiusKm),
		DefaultCenterLat: c.DefaultCenterLat,
		DefaultCenterLng: c.DefaultCenterLng,
		DefaultZoom:      int(c.DefaultZoom),
		UpdatedAt:        c.UpdatedAt,
	}
}
