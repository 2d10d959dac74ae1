// Package handler contains the HTTP handlers of the storefinder JSON API.
//
// This file implements the public widget endpoints and the admin widget
// settings.
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/i18n"
	"github.com/DukeRupert/storefinder/internal/service"
	"github.com/DukeRupert/storefinder/internal/widget"
)

// stringsResponse carries the UI strings of one language.
type stringsResponse struct {
	Language  i18n.Language     `json:"language"`
	Languages []i18n.Language   `json:"languages"`
	Messages  map[string]string `json:"messages"`
}

type snippetResponse struct {
	Snippet string              `json:"snippet"`
	Options widget.EmbedOptions `json:"options"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// WidgetHandler serves the embeddable widget.
type WidgetHandler struct {
	widgets service.WidgetService
	logger  *slog.Logger
}

// NewWidgetHandler creates a new WidgetHandler.
func NewWidgetHandler(widgets service.WidgetService, logger *slog.Logger) *WidgetHandler {
	return &WidgetHandler{
		widgets: widgets,
		logger:  logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the widget routes.
//
// public wraps the anonymous, cross-origin GET endpoints and routing wraps
// the route endpoint on top of it.
//
// Routes:
// - GET /api/widget/config    -> Config           (public)
// - GET /api/widget/strings   -> Strings          (public)
// - GET /api/widget/locations -> Locations        (public, searching)
// - GET /api/widget/route     -> Route            (public, routing)
// - GET /api/widget/settings  -> Settings         (admin)
// - PUT /api/widget/settings  -> SaveSettings     (admin)
// - GET /api/widget/snippet   -> Snippet          (admin)
func (h *WidgetHandler) RegisterRoutes(
	mux *http.ServeMux,
	public func(http.Handler) http.Handler,
	searching func(http.Handler) http.Handler,
	routing func(http.Handler) http.Handler,
	requireAdmin func(http.Handler) http.Handler,
) {
	// OPTIONS is answered by the CORS middleware
	for _, path := range []string{"/api/widget/config", "/api/widget/strings", "/api/widget/locations", "/api/widget/route"} {
		mux.Handle("OPTIONS "+path, public(http.NotFoundHandler()))
	}
	mux.Handle("GET /api/widget/config", public(http.HandlerFunc(h.Config)))
	mux.Handle("GET /api/widget/strings", public(http.HandlerFunc(h.Strings)))
	mux.Handle("GET /api/widget/locations", public(searching(http.HandlerFunc(h.Locations))))
	mux.Handle("GET /api/widget/route", public(routing(http.HandlerFunc(h.Route))))

	mux.Handle("GET /api/widget/settings", requireAdmin(http.HandlerFunc(h.Settings)))
	mux.Handle("PUT /api/widget/settings", requireAdmin(http.HandlerFunc(h.SaveSettings)))
	mux.Handle("GET /api/widget/snippet", requireAdmin(http.HandlerFunc(h.Snippet)))
}

// =============================================================================
// Public endpoints
// =============================================================================

// Config returns the widget configuration without the maps API key.
func (h *WidgetHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.widgets.Config(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Public())
}

// Strings returns the UI strings of the resolved language.
func (h *WidgetHandler) Strings(w http.ResponseWriter, r *http.Request) {
	lang := h.language(w, r)
	writeJSON(w, http.StatusOK, stringsResponse{
		Language:  lang,
		Languages: i18n.Supported,
		Messages:  i18n.Widget.Messages(lang),
	})
}

// Locations returns the public feed.
//
// Query parameters: search, services (comma separated ids, all required),
// lat, lng, radius (km), page, limit, lang.
func (h *WidgetHandler) Locations(w http.ResponseWriter, r *http.Request) {
	const op = "WidgetHandler.Locations"

	user, err := queryCoordinates(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	services, err := queryIDs(r, op, "services")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	radius, _, err := queryFloat(r, op, "radius")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	feed, err := h.widgets.Feed(r.Context(), service.FeedQuery{
		Language: h.language(w, r),
		Search:   r.URL.Query().Get("search"),
		Services: services,
		User:     user,
		RadiusKm: radius,
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", service.DefaultFeedLimit),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

// Route returns the nearest active location to lat/lng and the driving
// route there. Requests carrying the same session supersede each other.
func (h *WidgetHandler) Route(w http.ResponseWriter, r *http.Request) {
	const op = "WidgetHandler.Route"

	from, err := queryCoordinates(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if from == nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "lat and lng are required"))
		return
	}

	result, err := h.widgets.Route(r.Context(), strings.TrimSpace(r.URL.Query().Get("session")), *from)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// language resolves the display language and remembers an explicit choice.
func (h *WidgetHandler) language(w http.ResponseWriter, r *http.Request) i18n.Language {
	fallback := i18n.Default
	if cfg, err := h.widgets.Config(r.Context()); err == nil {
		if l, ok := i18n.Parse(cfg.DefaultLanguage); ok {
			fallback = l
		}
	} else {
		h.logger.Debug("using default language, config unavailable", "error", err)
	}

	prefs := i18n.NewCookiePreferences(w, r)
	override := r.URL.Query().Get("lang")
	lang := i18n.Resolve(i18n.Request{
		Override:       override,
		Preferences:    prefs,
		AcceptLanguage: r.Header.Get("Accept-Language"),
		Fallback:       fallback,
	})
	if _, ok := i18n.Parse(override); ok {
		i18n.SavePreference(prefs, lang, h.logger)
	}
	return lang
}

// =============================================================================
// Admin endpoints
// =============================================================================

// Settings returns the full widget configuration including the API key.
func (h *WidgetHandler) Settings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.widgets.Config(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SaveSettings validates and stores the widget configuration.
func (h *WidgetHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	const op = "WidgetHandler.SaveSettings"

	var cfg domain.WidgetConfig
	if err := decodeJSON(w, r, op, &cfg); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	saved, err := h.widgets.SaveConfig(r.Context(), cfg)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Snippet returns the embed HTML.
//
// Query parameters: lang (pins the initial language), hide_switcher=true.
func (h *WidgetHandler) Snippet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := widget.ParseEmbed(map[string]string{
		widget.AttrLanguage:     q.Get("lang"),
		widget.AttrHideSwitcher: q.Get("hide_switcher"),
	})
	writeJSON(w, http.StatusOK, snippetResponse{
		Snippet: h.widgets.Snippet(opts),
		Options: opts,
	})
}
