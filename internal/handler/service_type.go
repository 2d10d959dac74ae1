package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/service"
)

// ServiceTypeHandler handles capability tag requests.
type ServiceTypeHandler struct {
	serviceTypes service.ServiceTypeService
	logger       *slog.Logger
}

// NewServiceTypeHandler creates a new ServiceTypeHandler.
func NewServiceTypeHandler(serviceTypes service.ServiceTypeService, logger *slog.Logger) *ServiceTypeHandler {
	return &ServiceTypeHandler{
		serviceTypes: serviceTypes,
		logger:       logger,
	}
}

// RegisterRoutes registers the service type routes.
//
// Routes:
// - GET    /api/service-types      -> List
// - POST   /api/service-types      -> Create
// - PUT    /api/service-types/{id} -> Update
// - DELETE /api/service-types/{id} -> Delete
func (h *ServiceTypeHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.Handle("GET /api/service-types", requireAdmin(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/service-types", requireAdmin(http.HandlerFunc(h.Create)))
	mux.Handle("PUT /api/service-types/{id}", requireAdmin(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/service-types/{id}", requireAdmin(http.HandlerFunc(h.Delete)))
}

// List returns every tag with its translations.
func (h *ServiceTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.serviceTypes.List(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if types == nil {
		types = []domain.ServiceType{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_types": types})
}

// Create creates a tag.
func (h *ServiceTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "ServiceTypeHandler.Create"

	var params domain.ServiceTypeParams
	if err := decodeJSON(w, r, op, &params); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	st, err := h.serviceTypes.Create(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// Update replaces a tag.
func (h *ServiceTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "ServiceTypeHandler.Update"

	id, err := pathID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var params domain.ServiceTypeParams
	if err := decodeJSON(w, r, op, &params); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	st, err := h.serviceTypes.Update(r.Context(), id, params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Delete deletes a tag.
func (h *ServiceTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ServiceTypeHandler.Delete", "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := h.serviceTypes.Delete(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
