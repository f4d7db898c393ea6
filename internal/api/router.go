package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vnmchuo/fleet-billing/internal/logger"
)

// NewRouter mounts the billing routes. metricsHandler is served on /metrics
// when non-nil.
func NewRouter(h *Handler, log logger.Logger, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	r.Post("/v1/bills", h.HandleBill)
	r.Post("/api/bill-customer", h.HandleBill)

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	return r
}
