package handler

import (
	"net/http"
	"testing"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodeHandler(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"found", "address=Bahnhofstrasse+1+8001+Z%C3%BCrich", nil, http.StatusOK},
		{"blank address", "address=+", nil, http.StatusBadRequest},
		{"no result", "address=Nirgendwo", domain.Errorf(domain.ENOTFOUND, "GeocodingService.Geocode", "Address not found"), http.StatusNotFound},
		{"rate limited", "address=Bern", domain.RateLimit("GeocodingService.Geocode"), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGeocoding{coords: domain.Coordinates{Latitude: 47.37, Longitude: 8.54}, err: tt.err}
			rec := serve(func(mux *http.ServeMux) {
				NewGeocodeHandler(g, testLogger()).RegisterRoutes(mux, passThrough)
			}, jsonRequest(http.MethodGet, "/api/geocode?"+tt.query, ""))

			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "Bahnhofstrasse 1 8001 Zürich", g.address)
				assert.JSONEq(t, `{"latitude":47.37,"longitude":8.54}`, rec.Body.String())
			}
		})
	}
}
