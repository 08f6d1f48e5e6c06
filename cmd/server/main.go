// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

// Ludarium keeps a local catalog of Steam games, enriches it with genres
// and review scores in the background, and recommends unplayed games based
// on what the user already plays.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/ludarium/internal/api"
	"github.com/tomtom215/ludarium/internal/catalog"
	"github.com/tomtom215/ludarium/internal/config"
	"github.com/tomtom215/ludarium/internal/enrich"
	"github.com/tomtom215/ludarium/internal/logging"
	"github.com/tomtom215/ludarium/internal/recommend"
	"github.com/tomtom215/ludarium/internal/steam"
	"github.com/tomtom215/ludarium/internal/store"
	"github.com/tomtom215/ludarium/internal/supervisor"
	"github.com/tomtom215/ludarium/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Fatal error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("store_path", cfg.Store.Path).
		Int("port", cfg.Server.Port).
		Bool("enrichment", cfg.Enrich.Enabled).
		Msg("Starting ludarium")

	st, err := store.Open(&cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Store close failed")
		}
	}()

	client := steam.NewClient(&cfg.Steam)
	syncer := catalog.NewSyncer(st, client, cfg.Catalog)
	worker := enrich.NewWorker(st, client, cfg.Enrich)
	engine := recommend.NewEngine(st, client, recommend.NewNameResolver(client), &cfg.Recommend)

	handlers := api.NewHandlers(st, syncer, engine, worker)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(&cfg.API, handlers),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewGCService(st, cfg.Store.GCInterval, cfg.Store.GCDiscardRatio))
	if cfg.Enrich.Enabled {
		tree.AddPipelineService(services.NewEnrichService(worker))
	}
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
