// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/ludarium/internal/config"
)

// NewRouter assembles the chi router with the full middleware stack.
// /healthz and /metrics sit outside the versioned API and its rate limit.
func NewRouter(cfg *config.APIConfig, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(CORS(cfg.CORSOrigins))
		r.Use(RateLimit(cfg))

		r.Post("/catalog/sync", h.CatalogSync)
		r.Post("/catalog/cleanup", h.CatalogCleanup)
		r.Get("/enrichment/status", h.EnrichmentStatus)
		r.Get("/recommendations/{steamID}", h.Recommendations)
		r.Get("/games/{appid}", h.Game)
	})

	return r
}
