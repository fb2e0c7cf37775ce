// Package httpapi wires the HTTP surface: shared middleware, response
// helpers, and the router feature handlers mount into.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registrar is anything that mounts routes on the API router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter builds the chi router with the shared middleware stack, health
// and metrics endpoints, and every feature handler mounted under /v1.
func NewRouter(logger *slog.Logger, validator TokenValidator, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Session(validator, logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		for _, h := range handlers {
			h.Register(api)
		}
	})
	return r
}
