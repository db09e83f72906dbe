package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the status router: health check, run statistics and the
// Prometheus metrics endpoint.
func NewRouter(source StatusSource, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	h := NewStatusHandler(source, logger)

	r.Get("/health", h.Health)
	r.Get("/stats", h.GetStats)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
