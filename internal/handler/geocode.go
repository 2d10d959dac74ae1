package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/service"
)

// GeocodeHandler looks up coordinates for the admin location form.
type GeocodeHandler struct {
	geocoding service.GeocodingService
	logger    *slog.Logger
}

// NewGeocodeHandler creates a new GeocodeHandler.
func NewGeocodeHandler(geocoding service.GeocodingService, logger *slog.Logger) *GeocodeHandler {
	return &GeocodeHandler{
		geocoding: geocoding,
		logger:    logger,
	}
}

// RegisterRoutes registers GET /api/geocode.
func (h *GeocodeHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.Handle("GET /api/geocode", requireAdmin(http.HandlerFunc(h.Geocode)))
}

// Geocode returns the coordinate of ?address=.
func (h *GeocodeHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	const op = "GeocodeHandler.Geocode"

	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "address is required"))
		return
	}

	c, err := h.geocoding.Geocode(r.Context(), address)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
