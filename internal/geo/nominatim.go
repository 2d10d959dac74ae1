package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/metrics"
)

// NominatimConfig configures a Nominatim compatible search endpoint.
type NominatimConfig struct {
	BaseURL      string        // e.g. https://nominatim.openstreetmap.org
	UserAgent    string        // required by the public instance's usage policy
	CountryCodes string        // comma separated ISO codes, empty for worldwide
	Timeout      time.Duration // per request
}

// Nominatim is a Geocoder backed by the Nominatim /search API.
type Nominatim struct {
	config NominatimConfig
	client *http.Client
	logger *slog.Logger
}

// NewNominatim creates a Nominatim geocoder.
func NewNominatim(config NominatimConfig, logger *slog.Logger) (*Nominatim, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("geocoder base URL is required")
	}
	if config.UserAgent == "" {
		return nil, fmt.Errorf("geocoder user agent is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	return &Nominatim{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the coordinate of the best match for query.
func (n *Nominatim) Geocode(ctx context.Context, query string) (domain.Coordinates, error) {
	c, err := n.search(ctx, query)
	switch {
	case err == nil:
		metrics.GeocodeLookup("found")
	case errors.Is(err, ErrNoResult):
		metrics.GeocodeLookup("not_found")
	default:
		metrics.GeocodeLookup("error")
	}
	return c, err
}

func (n *Nominatim) search(ctx context.Context, query string) (domain.Coordinates, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Coordinates{}, WrapError("geocode", ErrNoResult)
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", "1")
	if n.config.CountryCodes != "" {
		params.Set("countrycodes", n.config.CountryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.config.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, WrapError("build request", err)
	}
	req.Header.Set("User-Agent", n.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Coordinates{}, WrapError("geocode", ctx.Err())
		}
		return domain.Coordinates{}, WrapError("geocode", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return domain.Coordinates{}, WrapError("geocode", err)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&places); err != nil {
		return domain.Coordinates{}, WrapError("parse response", err)
	}
	if len(places) == 0 {
		return domain.Coordinates{}, WrapError("geocode", ErrNoResult)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return domain.Coordinates{}, WrapError("parse latitude", err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return domain.Coordinates{}, WrapError("parse longitude", err)
	}
	c := domain.Coordinates{Latitude: lat, Longitude: lon}
	if !c.Valid() {
		return domain.Coordinates{}, WrapError("geocode", fmt.Errorf("%w: coordinate out of range", ErrNoResult))
	}

	n.logger.Debug("geocoded address", "query", query, "match", places[0].DisplayName)
	return c, nil
}

// statusError maps upstream HTTP status codes to geo errors.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimit
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
