// Package handler exposes the persisted office configuration over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"punchd/internal/geo"
	httpapi "punchd/internal/transport/http"
	pkgerrors "punchd/pkg/errors"
)

// Handler handles the office settings endpoints.
type Handler struct {
	settings geo.SettingsStore
	logger   *slog.Logger
}

// New creates a settings Handler.
func New(settings geo.SettingsStore, logger *slog.Logger) *Handler {
	return &Handler{settings: settings, logger: logger}
}

// Register mounts the settings routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/settings/office", h.handleGetOffice)
	r.Put("/settings/office", h.handlePutOffice)
}

type officePayload struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

func (h *Handler) handleGetOffice(w http.ResponseWriter, r *http.Request) {
	office, err := h.settings.Office(r.Context())
	if err != nil {
		httpapi.WriteError(w, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to load office settings"))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, officePayload{
		Latitude:     office.Latitude,
		Longitude:    office.Longitude,
		RadiusMeters: office.RadiusMeters,
	})
}

func (h *Handler) handlePutOffice(w http.ResponseWriter, r *http.Request) {
	var req officePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range"))
		return
	}
	if req.RadiusMeters <= 0 {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeValidation, "radius must be positive"))
		return
	}

	office := geo.Office{
		Point:        geo.Point{Latitude: req.Latitude, Longitude: req.Longitude},
		RadiusMeters: req.RadiusMeters,
	}
	if err := h.settings.SetOffice(r.Context(), office); err != nil {
		httpapi.WriteError(w, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to save office settings"))
		return
	}
	h.logger.InfoContext(r.Context(), "office settings updated",
		"latitude", office.Latitude,
		"longitude", office.Longitude,
		"radius_m", office.RadiusMeters,
	)
	httpapi.WriteJSON(w, http.StatusOK, req)
}
