// Package handler contains the HTTP handlers of the storefinder JSON API.
//
// This file implements the CSV import wizard, the batch import, the
// duplicate check and the import history.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/storefinder/internal/csvimport"
	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/service"
	"github.com/google/uuid"
)

// ImportWizard is the part of csvimport.Orchestrator the handler drives.
type ImportWizard interface {
	Start(ctx context.Context, name string, r io.Reader, size int64) (*csvimport.Snapshot, error)
	Reupload(ctx context.Context, id uuid.UUID, name string, r io.Reader, size int64) (*csvimport.Snapshot, error)
	Get(ctx context.Context, id uuid.UUID) (*csvimport.Snapshot, error)
	SetMappings(ctx context.Context, id uuid.UUID, mappings []csvimport.Mapping) (*csvimport.Snapshot, error)
	Preview(ctx context.Context, id uuid.UUID) (*csvimport.Snapshot, error)
	SetAction(ctx context.Context, id uuid.UUID, line int, action csvimport.DuplicateAction) (*csvimport.Snapshot, error)
	SetAllActions(ctx context.Context, id uuid.UUID, action csvimport.DuplicateAction) (*csvimport.Snapshot, error)
	Commit(ctx context.Context, id uuid.UUID) (*domain.ImportResult, error)
	Back(ctx context.Context, id uuid.UUID) (*csvimport.Snapshot, error)
	Discard(ctx context.Context, id uuid.UUID) error
}

var _ ImportWizard = (*csvimport.Orchestrator)(nil)

// =============================================================================
// Request Types
// =============================================================================

type mappingsRequest struct {
	Mappings []csvimport.Mapping `json:"mappings"`
}

type actionRequest struct {
	Action csvimport.DuplicateAction `json:"action"`
}

type checkDuplicatesRequest struct {
	Rows []domain.DuplicateCandidate `json:"rows"`
}

type checkDuplicatesResponse struct {
	Duplicates map[string]domain.DuplicateMatch `json:"duplicates"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// ImportHandler handles import requests.
type ImportHandler struct {
	wizard     ImportWizard
	imports    service.ImportService
	duplicates service.DuplicateService
	geocoding  service.GeocodingService
	maxUpload  int64
	logger     *slog.Logger
}

// NewImportHandler creates a new ImportHandler. maxUpload bounds CSV
// uploads; geocoding may be nil.
func NewImportHandler(
	wizard ImportWizard,
	imports service.ImportService,
	duplicates service.DuplicateService,
	geocoding service.GeocodingService,
	maxUpload int64,
	logger *slog.Logger,
) *ImportHandler {
	return &ImportHandler{
		wizard:     wizard,
		imports:    imports,
		duplicates: duplicates,
		geocoding:  geocoding,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers all import routes with the provided mux.
//
// Routes:
// - POST   /api/import/sessions                      -> StartSession
// - GET    /api/import/sessions/{id}                 -> GetSession
// - DELETE /api/import/sessions/{id}                 -> DiscardSession
// - PUT    /api/import/sessions/{id}/file            -> Reupload
// - PUT    /api/import/sessions/{id}/mappings        -> SetMappings
// - POST   /api/import/sessions/{id}/preview         -> Preview
// - PUT    /api/import/sessions/{id}/rows/{line}/action -> SetAction
// - PUT    /api/import/sessions/{id}/actions         -> SetAllActions
// - POST   /api/import/sessions/{id}/commit          -> Commit
// - POST   /api/import/sessions/{id}/back            -> Back
// - POST   /api/import/batch                         -> Batch
// - POST   /api/import/check-duplicates              -> CheckDuplicates
// - GET    /api/import/runs                          -> ListRuns
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.Handle("POST /api/import/sessions", requireAdmin(http.HandlerFunc(h.StartSession)))
	mux.Handle("GET /api/import/sessions/{id}", requireAdmin(http.HandlerFunc(h.GetSession)))
	mux.Handle("DELETE /api/import/sessions/{id}", requireAdmin(http.HandlerFunc(h.DiscardSession)))
	mux.Handle("PUT /api/import/sessions/{id}/file", requireAdmin(http.HandlerFunc(h.Reupload)))
	mux.Handle("PUT /api/import/sessions/{id}/mappings", requireAdmin(http.HandlerFunc(h.SetMappings)))
	mux.Handle("POST /api/import/sessions/{id}/preview", requireAdmin(http.HandlerFunc(h.Preview)))
	mux.Handle("PUT /api/import/sessions/{id}/rows/{line}/action", requireAdmin(http.HandlerFunc(h.SetAction)))
	mux.Handle("PUT /api/import/sessions/{id}/actions", requireAdmin(http.HandlerFunc(h.SetAllActions)))
	mux.Handle("POST /api/import/sessions/{id}/commit", requireAdmin(http.HandlerFunc(h.Commit)))
	mux.Handle("POST /api/import/sessions/{id}/back", requireAdmin(http.HandlerFunc(h.Back)))
	mux.Handle("POST /api/import/batch", requireAdmin(http.HandlerFunc(h.Batch)))
	mux.Handle("POST /api/import/check-duplicates", requireAdmin(http.HandlerFunc(h.CheckDuplicates)))
	mux.Handle("GET /api/import/runs", requireAdmin(http.HandlerFunc(h.ListRuns)))
}

// =============================================================================
// Wizard
// =============================================================================

// StartSession parses the multipart field "file" into a new session.
func (h *ImportHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	const op = "ImportHandler.StartSession"

	file, name, size, cleanup, err := h.openUpload(w, r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer cleanup()

	snap, err := h.wizard.Start(r.Context(), name, file, size)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// Reupload replaces the file of a session in the upload stage.
func (h *ImportHandler) Reupload(w http.ResponseWriter, r *http.Request) {
	const op = "ImportHandler.Reupload"

	id, err := pathID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	file, name, size, cleanup, err := h.openUpload(w, r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer cleanup()

	h.respondSnapshot(w, r, func() (*csvimport.Snapshot, error) {
		return h.wizard.Reupload(r.Context(), id, name, file, size)
	})
}

// GetSession returns the current state of a session.
func (h *ImportHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ImportHandler.GetSession", "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.respondSnapshot(w, r, func() (*csvimport.Snapshot, error) {
		return h.wizard.Get(r.Context(), id)
	})
}

// SetMappings stores the operator's column mapping.
func (h *ImportHandler) SetMappings(w http.ResponseWriter, r *http.Request) {
	const op = "ImportHandler.SetMappings"

	id, err := pathID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var req mappingsRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.respondSnapshot(w, r, func() (*csvimport.Snapshot, error) {
		return h.wizard.SetMappings(r.Context(), id, req.Mappings)
	})
}

// Preview validates every row and runs the duplicate check.
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ImportHandler.Preview", "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.respondSnapshot(w, r, func() (*csvimport.Snapshot, error) {
		return h.wizard.Preview(r.Context(), id)
	})
}

// SetAction changes the decision for the duplicate row at {line}.
func (h *ImportHandler) SetAction(w http.ResponseWriter, r *http.Request) {
	const op = "ImportHandler.SetAction"

	id, err := pathID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	line, err := strconv.Atoi(r.PathValue("line"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid line"))
		return
	}
	var req actionRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.respondSnapshot(w, r, func() (*csvimport.Snapshot, error) {
		return h.wizard.SetAction(r.Context(), id, line, req.Action)
	})
}

// SetAllActions applies one decision to every duplicate row.
func (h *ImportHandler) SetAllActions(w http.ResponseWriter, r *http.Request) {
	const op = "ImportHandler.SetAllActions"

	id, err := pathID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var req actionRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.respondSnapshot(w, r, func() (*csvimport.Snapshot, error) {
		return h.wizard.SetAllActions(r.Context(), id, req.Action)
	})
}

// Commit sends the previewed rows to the store. It runs to completion even
// when the client goes away.
func (h *ImportHandler) Commit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ImportHandler.Commit", "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.wizard.Commit(context.WithoutCancel(r.Context()), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Back returns the session to the previous stage.
func (h *ImportHandler) Back(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ImportHandler.Back", "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.respondSnapshot(w, r, func() (*csvimport.Snapshot, error) {
		return h.wizard.Back(r.Context(), id)
	})
}

// DiscardSession drops a session.
func (h *ImportHandler) DiscardSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ImportHandler.DiscardSession", "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := h.wizard.Discard(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImportHandler) respondSnapshot(w http.ResponseWriter, r *http.Request, fn func() (*csvimport.Snapshot, error)) {
	snap, err := fn()
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// openUpload returns the multipart field "file". cleanup closes the file
// and removes spooled parts.
func (h *ImportHandler) openUpload(w http.ResponseWriter, r *http.Request, op string) (io.Reader, string, int64, func(), error) {
	// room for the multipart envelope
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", 0, nil, domain.TooLarge(op, "File is too large")
		}
		return nil, "", 0, nil, domain.Invalid(op, "Expected a multipart upload with a file field")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		return nil, "", 0, nil, domain.Invalid(op, "No file uploaded")
	}
	cleanup := func() {
		_ = file.Close()
		_ = r.MultipartForm.RemoveAll()
	}
	return file, header.Filename, header.Size, cleanup, nil
}

// =============================================================================
// POST /api/import/batch - Batch Import
// =============================================================================

// Batch applies a batch of insert and update operations. New locations
// without coordinates are queued for geocoding; that never affects the
// response.
func (h *ImportHandler) Batch(w http.ResponseWriter, r *http.Request) {
	const op = "ImportHandler.Batch"

	var batch domain.ImportBatch
	if err := decodeJSON(w, r, op, &batch); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	result, err := h.imports.Import(ctx, batch)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if h.geocoding != nil && len(result.CreatedWithoutCoordinates) > 0 {
		if err := h.geocoding.ScheduleGeocoding(ctx, result.CreatedWithoutCoordinates); err != nil {
			h.logger.Warn("failed to schedule geocoding", "error", err, "op", op, "count", len(result.CreatedWithoutCoordinates))
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// POST /api/import/check-duplicates - Duplicate Check
// =============================================================================

// CheckDuplicates looks up existing locations by name and postal code.
func (h *ImportHandler) CheckDuplicates(w http.ResponseWriter, r *http.Request) {
	const op = "ImportHandler.CheckDuplicates"

	var req checkDuplicatesRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	matches, err := h.duplicates.CheckDuplicates(r.Context(), req.Rows)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if matches == nil {
		matches = map[string]domain.DuplicateMatch{}
	}
	writeJSON(w, http.StatusOK, checkDuplicatesResponse{Duplicates: matches})
}

// =============================================================================
// GET /api/import/runs - Import History
// =============================================================================

// ListRuns returns the most recent import runs.
func (h *ImportHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.imports.ListRuns(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if runs == nil {
		runs = []domain.ImportRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
