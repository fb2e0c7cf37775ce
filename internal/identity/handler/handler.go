// Package handler exposes session endpoints: anonymous sign-in and a
// who-am-i view of the current session.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"punchd/internal/identity"
	httpapi "punchd/internal/transport/http"
	pkgerrors "punchd/pkg/errors"
	"punchd/pkg/requestcontext"
)

// Handler handles session endpoints.
type Handler struct {
	identity *identity.Service
	logger   *slog.Logger
}

// New creates a session Handler.
func New(svc *identity.Service, logger *slog.Logger) *Handler {
	return &Handler{identity: svc, logger: logger}
}

// Register mounts the session routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions/anonymous", h.handleAnonymousSignIn)
	r.Get("/sessions/me", h.handleMe)
}

type sessionResponse struct {
	OwnerID   string `json:"owner_id"`
	Anonymous bool   `json:"anonymous"`
	Label     string `json:"label"`
	Token     string `json:"token,omitempty"`
}

func (h *Handler) handleAnonymousSignIn(w http.ResponseWriter, r *http.Request) {
	sess, token, err := h.identity.SignInAnonymously(r.Context())
	if err != nil {
		httpapi.WriteError(w, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to create session"))
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, sessionResponse{
		OwnerID:   sess.OwnerID,
		Anonymous: true,
		Label:     identity.DisplayLabel(sess),
		Token:     token,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestcontext.Session(r.Context())
	if !ok {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeUnauthorized, "no session"))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sessionResponse{
		OwnerID:   sess.OwnerID,
		Anonymous: sess.Anonymous,
		Label:     identity.DisplayLabel(sess),
	})
}
