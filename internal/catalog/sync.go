// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

// Package catalog loads the remote app catalog into the store's pending
// queue and reclaims storage from permanently low-value entries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ludarium/internal/config"
	"github.com/tomtom215/ludarium/internal/logging"
	"github.com/tomtom215/ludarium/internal/metrics"
	"github.com/tomtom215/ludarium/internal/steam"
	"github.com/tomtom215/ludarium/internal/store"
)

// AppLister is the subset of the Steam client the syncer consumes.
type AppLister interface {
	ListAllApps(ctx context.Context) ([]steam.App, error)
}

// SyncResult reports one sync run.
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Sampled  int `json:"sampled"`
	Existing int `json:"existing"`
}

// Syncer performs the idempotent bulk load of the remote catalog.
type Syncer struct {
	store  *store.Store
	lister AppLister
	cfg    config.CatalogConfig
	log    zerolog.Logger
}

// NewSyncer creates a catalog syncer.
func NewSyncer(st *store.Store, lister AppLister, cfg config.CatalogConfig) *Syncer {
	return &Syncer{
		store:  st,
		lister: lister,
		cfg:    cfg,
		log:    logging.With().Str("component", "catalog").Logger(),
	}
}

// Sync fetches the full app list and inserts a pending stub for every
// sampled appid not already present. Already-seen appids are never touched,
// so repeated runs cannot reset enrichment progress or resurrect tombstoned
// items.
func (s *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	start := time.Now()

	apps, err := s.lister.ListAllApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch app list: %w", err)
	}

	result := &SyncResult{Fetched: len(apps)}
	pending := false

	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if !s.sampled(app.AppID) {
			result.Sampled++
			continue
		}

		_, err := s.store.Find(ctx, app.AppID)
		if err == nil {
			result.Existing++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return result, fmt.Errorf("lookup %d: %w", app.AppID, err)
		}

		name := app.Name
		update := store.GameUpdate{
			Name:           &name,
			DetailsFetched: &pending,
		}
		if err := s.store.UpsertMerge(ctx, app.AppID, update); err != nil {
			return result, fmt.Errorf("insert stub %d: %w", app.AppID, err)
		}
		result.Inserted++
		metrics.CatalogSyncInserted.Inc()
	}

	metrics.CatalogSyncDuration.Observe(time.Since(start).Seconds())
	s.log.Info().
		Int("fetched", result.Fetched).
		Int("inserted", result.Inserted).
		Int("existing", result.Existing).
		Int("sampled_out", result.Sampled).
		Dur("took", time.Since(start)).
		Msg("catalog sync complete")

	return result, nil
}

// sampled applies the configured decimation rule. A modulus of 0 or 1 admits
// every appid.
func (s *Syncer) sampled(appid int) bool {
	if s.cfg.SampleModulus <= 1 {
		return true
	}
	return appid%s.cfg.SampleModulus == 0
}
