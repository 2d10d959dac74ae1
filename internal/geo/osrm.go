package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
)

// OSRMConfig configures an OSRM compatible routing endpoint.
type OSRMConfig struct {
	BaseURL string // e.g. https://router.project-osrm.org
	Profile string // default "driving"
	Timeout time.Duration
}

// OSRM is a Router backed by the OSRM /route/v1 API.
type OSRM struct {
	config OSRMConfig
	client *http.Client
	logger *slog.Logger
}

// NewOSRM creates an OSRM router.
func NewOSRM(config OSRMConfig, logger *slog.Logger) (*OSRM, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("router base URL is required")
	}
	if config.Profile == "" {
		config.Profile = "driving"
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	return &OSRM{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// Route requests the fastest route from one coordinate to another.
func (o *OSRM) Route(ctx context.Context, from, to domain.Coordinates) (*Route, error) {
	endpoint := fmt.Sprintf("%s/route/v1/%s/%s,%s;%s,%s?overview=full&geometries=geojson",
		o.config.BaseURL, o.config.Profile,
		formatCoord(from.Longitude), formatCoord(from.Latitude),
		formatCoord(to.Longitude), formatCoord(to.Latitude),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, WrapError("build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapError("route", ctx.Err())
		}
		return nil, WrapError("route", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	// OSRM answers unroutable requests with 400 and a code such as NoRoute.
	var body osrmResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&body)
	if resp.StatusCode == http.StatusBadRequest && decodeErr == nil && body.Code != "Ok" {
		return nil, WrapError("route", fmt.Errorf("%w: %s", ErrNoRoute, body.Code))
	}
	if err := statusError(resp); err != nil {
		return nil, WrapError("route", err)
	}
	if decodeErr != nil {
		return nil, WrapError("parse response", decodeErr)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, WrapError("route", ErrNoRoute)
	}

	r := body.Routes[0]
	geometry := make([][2]float64, 0, len(r.Geometry.Coordinates))
	for _, c := range r.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		geometry = append(geometry, [2]float64{c[1], c[0]})
	}

	o.logger.Debug("route computed", "distance_m", r.Distance, "duration_s", r.Duration, "points", len(geometry))
	return &Route{
		Geometry:    geometry,
		DistanceKm:  r.Distance / 1000,
		DurationMin: r.Duration / 60,
	}, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
