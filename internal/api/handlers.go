// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ludarium/internal/catalog"
	"github.com/tomtom215/ludarium/internal/enrich"
	"github.com/tomtom215/ludarium/internal/recommend"
	"github.com/tomtom215/ludarium/internal/store"
)

// CatalogService runs catalog sync and cleanup passes.
type CatalogService interface {
	Sync(ctx context.Context) (*catalog.SyncResult, error)
	Cleanup(ctx context.Context) (int, error)
}

// Recommender produces ranked recommendations for a user.
type Recommender interface {
	Recommend(ctx context.Context, steamID string, limit int) (*recommend.Result, error)
}

// WorkerStats exposes the enrichment worker's counters.
type WorkerStats interface {
	Stats() enrich.Stats
}

// Handlers holds the dependencies behind the HTTP surface.
type Handlers struct {
	store       *store.Store
	catalog     CatalogService
	recommender Recommender
	worker      WorkerStats
}

// NewHandlers creates the handler set.
func NewHandlers(st *store.Store, cat CatalogService, rec Recommender, worker WorkerStats) *Handlers {
	return &Handlers{
		store:       st,
		catalog:     cat,
		recommender: rec,
		worker:      worker,
	}
}

// steamIDPattern matches 64-bit SteamIDs (17 decimal digits).
var steamIDPattern = regexp.MustCompile(`^\d{17}$`)

// CatalogSync handles POST /api/v1/catalog/sync. The sync runs inline; the
// app list fetch dominates and finishes within the request timeout.
func (h *Handlers) CatalogSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	result, err := h.catalog.Sync(r.Context())
	if err != nil {
		rw.ExternalServiceError("steam", err)
		return
	}
	rw.Success(result)
}

// CatalogCleanup handles POST /api/v1/catalog/cleanup.
func (h *Handlers) CatalogCleanup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	deleted, err := h.catalog.Cleanup(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]int{"deleted": deleted})
}

// EnrichmentStatus handles GET /api/v1/enrichment/status, reporting the
// per-state record counts alongside the worker's own counters.
func (h *Handlers) EnrichmentStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	counts, err := h.store.Counts(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	payload := map[string]interface{}{
		"states": counts,
	}
	if h.worker != nil {
		payload["worker"] = h.worker.Stats()
	}
	rw.Success(payload)
}

// Recommendations handles GET /api/v1/recommendations/{steamID}?limit=N.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	steamID := chi.URLParam(r, "steamID")
	if !steamIDPattern.MatchString(steamID) {
		rw.BadRequest("steamID must be a 17-digit SteamID64")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			rw.BadRequest("limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}

	result, err := h.recommender.Recommend(r.Context(), steamID, limit)
	if err != nil {
		rw.ExternalServiceError("steam", err)
		return
	}
	switch result.Status {
	case recommend.StatusInsufficientData:
		rw.Error(http.StatusUnprocessableEntity, ErrCodeInsufficientData, result.Reason)
	case recommend.StatusModelError:
		rw.Error(http.StatusInternalServerError, ErrCodeModelError, result.Reason)
	default:
		rw.Success(result)
	}
}

// Game handles GET /api/v1/games/{appid}. A tombstoned appid reports its
// recorded failure cause alongside the record.
func (h *Handlers) Game(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	appid, err := strconv.Atoi(chi.URLParam(r, "appid"))
	if err != nil || appid <= 0 {
		rw.BadRequest("appid must be a positive integer")
		return
	}

	rec, err := h.store.Find(r.Context(), appid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("game not in catalog")
			return
		}
		rw.DatabaseError(err)
		return
	}

	payload := map[string]interface{}{
		"game": rec,
	}
	if tomb, err := h.store.FindError(r.Context(), appid); err == nil {
		payload["enrichment_error"] = tomb
	}
	rw.Success(payload)
}

// Healthz handles GET /healthz.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]string{"status": "ok"})
}
