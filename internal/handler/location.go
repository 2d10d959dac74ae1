// Package handler contains the HTTP handlers of the storefinder JSON API.
//
// This file implements the admin location endpoints.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/service"
	"github.com/DukeRupert/storefinder/internal/storage"
	"github.com/google/uuid"
)

// =============================================================================
// Request Types
// =============================================================================

// createLocationRequest is the body of POST /api/locations. Blank country,
// status and opening hours type receive the insert defaults.
type createLocationRequest struct {
	Name             string                  `json:"name"`
	Street           string                  `json:"street"`
	HouseNumber      string                  `json:"house_number"`
	PostalCode       string                  `json:"postal_code"`
	City             string                  `json:"city"`
	Country          string                  `json:"country"`
	Phone            string                  `json:"phone"`
	EmergencyPhone   string                  `json:"emergency_phone"`
	Email            string                  `json:"email"`
	Website          string                  `json:"website"`
	ImageURL         string                  `json:"image_url"`
	Latitude         *float64                `json:"latitude"`
	Longitude        *float64                `json:"longitude"`
	Status           domain.LocationStatus   `json:"status"`
	OpeningHoursType domain.OpeningHoursType `json:"opening_hours_type"`
	OpeningHoursFrom string                  `json:"opening_hours_from"`
	OpeningHoursTo   string                  `json:"opening_hours_to"`
	ServiceTypeIDs   []uuid.UUID             `json:"service_type_ids"`
}

func (req createLocationRequest) params(op string) (domain.CreateLocationParams, error) {
	p := domain.CreateLocationParams{
		Name:             req.Name,
		Street:           req.Street,
		HouseNumber:      req.HouseNumber,
		PostalCode:       req.PostalCode,
		City:             req.City,
		Country:          req.Country,
		Phone:            req.Phone,
		EmergencyPhone:   req.EmergencyPhone,
		Email:            req.Email,
		Website:          req.Website,
		ImageURL:         req.ImageURL,
		Status:           req.Status,
		OpeningHoursType: req.OpeningHoursType,
		OpeningHoursFrom: req.OpeningHoursFrom,
		OpeningHoursTo:   req.OpeningHoursTo,
		ServiceTypeIDs:   req.ServiceTypeIDs,
	}
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		p.Coordinates = &domain.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
	case req.Latitude != nil || req.Longitude != nil:
		return p, domain.NewValidationError(op, "coordinates", "Latitude and longitude must be given together")
	}
	return p, nil
}

// =============================================================================
// Handler Configuration
// =============================================================================

// LocationHandler handles location CRUD requests.
type LocationHandler struct {
	locationService service.LocationService
	imageService    service.ImageService
	logger          *slog.Logger
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(
	locationService service.LocationService,
	imageService service.ImageService,
	logger *slog.Logger,
) *LocationHandler {
	return &LocationHandler{
		locationService: locationService,
		imageService:    imageService,
		logger:          logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers all location routes with the provided mux.
//
// Routes:
// - GET    /api/locations            -> List
// - POST   /api/locations            -> Create
// - GET    /api/locations/{id}       -> Get
// - PATCH  /api/locations/{id}       -> Update
// - DELETE /api/locations/{id}       -> Delete
// - POST   /api/locations/{id}/image -> UploadImage
// - DELETE /api/locations/{id}/image -> DeleteImage
func (h *LocationHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.Handle("GET /api/locations", requireAdmin(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/locations", requireAdmin(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/locations/{id}", requireAdmin(http.HandlerFunc(h.Get)))
	mux.Handle("PATCH /api/locations/{id}", requireAdmin(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/locations/{id}", requireAdmin(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/locations/{id}/image", requireAdmin(http.HandlerFunc(h.UploadImage)))
	mux.Handle("DELETE /api/locations/{id}/image", requireAdmin(http.HandlerFunc(h.DeleteImage)))
}

// =============================================================================
// GET /api/locations - List Locations
// =============================================================================

// List returns one page of locations.
//
// Query parameters: search, filter=incomplete, sort, order (asc|desc),
// page, limit.
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := domain.ListLocationsParams{
		Search:     q.Get("search"),
		Incomplete: q.Get("filter") == "incomplete",
		SortBy:     q.Get("sort"),
		SortDesc:   strings.EqualFold(q.Get("order"), "desc"),
		Page:       queryInt(r, "page", 1),
		Limit:      queryInt(r, "limit", 20),
	}

	page, err := h.locationService.List(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// =============================================================================
// POST /api/locations - Create Location
// =============================================================================

// Create creates a location.
func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "LocationHandler.Create"

	var req createLocationRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	params, err := req.params(op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	loc, err := h.locationService.Create(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

// =============================================================================
// GET /api/locations/{id} - Get Location
// =============================================================================

// Get returns a location with its tags.
func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "LocationHandler.Get", "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	loc, err := h.locationService.GetByID(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// =============================================================================
// PATCH /api/locations/{id} - Update Location
// =============================================================================

// Update applies a partial update. Keys missing from the body are left
// alone; "service_type_ids" replaces the whole tag set when present.
func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "LocationHandler.Update"

	id, err := pathID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var patch domain.LocationPatch
	if err := decodeJSON(w, r, op, &patch); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	loc, err := h.locationService.Update(r.Context(), id, patch)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// =============================================================================
// DELETE /api/locations/{id} - Delete Location
// =============================================================================

// Delete deletes a location.
func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "LocationHandler.Delete", "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.locationService.Delete(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// POST /api/locations/{id}/image - Upload Image
// =============================================================================

// UploadImage replaces the image of a location. The file is read from the
// multipart field "image".
func (h *LocationHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	const op = "LocationHandler.UploadImage"

	id, err := pathID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// room for the multipart envelope around a maximum size image
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(domain.MaxImageSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(w, r, h.logger, domain.TooLarge(op, "Image is larger than 10 MB"))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Expected a multipart upload with an image field"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No image uploaded"))
		return
	}
	defer file.Close()

	// generic uploads are sniffed by the service
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" && !storage.IsAllowedImageType(ct) {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Only JPEG, PNG and WebP images are supported"))
		return
	}

	loc, err := h.imageService.Upload(r.Context(), id, header.Filename, file, header.Size)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// =============================================================================
// DELETE /api/locations/{id}/image - Delete Image
// =============================================================================

// DeleteImage removes the image of a location.
func (h *LocationHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "LocationHandler.DeleteImage", "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	loc, err := h.imageService.Delete(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
