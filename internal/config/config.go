// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

// Package config defines the Ludarium configuration model and its loader.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. See koanf.go for the loading mechanics.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Ludarium server.
type Config struct {
	Steam     SteamConfig     `koanf:"steam"`
	Store     StoreConfig     `koanf:"store"`
	Enrich    EnrichConfig    `koanf:"enrich"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Recommend RecommendConfig `koanf:"recommend"`
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// SteamConfig holds credentials and endpoints for the Steam Web API and the
// storefront API.
type SteamConfig struct {
	// APIKey is the Steam Web API key used for GetAppList and GetOwnedGames.
	APIKey string `koanf:"api_key"`

	// APIBaseURL is the Steam Web API base (api.steampowered.com).
	APIBaseURL string `koanf:"api_base_url"`

	// StoreBaseURL is the storefront API base (store.steampowered.com),
	// used for appdetails and appreviews lookups.
	StoreBaseURL string `koanf:"store_base_url"`

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RequestsPerSecond paces outgoing requests. This is client-side
	// politeness; HTTP 429 handling is the enrichment worker's concern.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Burst is the rate limiter burst size.
	Burst int `koanf:"burst"`
}

// StoreConfig holds BadgerDB settings.
type StoreConfig struct {
	// Path is the badger data directory.
	Path string `koanf:"path"`

	// InMemory runs the store without disk persistence (tests, demos).
	InMemory bool `koanf:"in_memory"`

	// GCInterval is how often value-log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCDiscardRatio is the badger value-log GC discard ratio.
	GCDiscardRatio float64 `koanf:"gc_discard_ratio"`
}

// EnrichConfig tunes the enrichment worker.
type EnrichConfig struct {
	// Enabled starts the background worker.
	Enabled bool `koanf:"enabled"`

	// ItemDelay is the fixed sleep between processed items.
	ItemDelay time.Duration `koanf:"item_delay"`

	// IdleDelay is the sleep when no pending item is found.
	IdleDelay time.Duration `koanf:"idle_delay"`

	// RateLimitBackoff is the fixed sleep before retrying a rate-limited
	// remote call. Retries are unbounded for a single item; the upstream
	// limit always lifts eventually and a cap would silently drop items.
	RateLimitBackoff time.Duration `koanf:"rate_limit_backoff"`
}

// CatalogConfig tunes catalog sync.
type CatalogConfig struct {
	// SampleModulus restricts sync to appids divisible by this value.
	// 0 or 1 disables sampling and loads the full catalog.
	SampleModulus int `koanf:"sample_modulus"`
}

// RecommendConfig tunes the recommendation engine.
type RecommendConfig struct {
	// TopK is the number of recommendations returned.
	TopK int `koanf:"top_k"`

	// TrainFraction is the share of the training set used for fitting;
	// the remainder is the validation split.
	TrainFraction float64 `koanf:"train_fraction"`

	// Seed makes the train/validation shuffle and forest sampling
	// reproducible.
	Seed int64 `koanf:"seed"`

	// Trees is the random forest size.
	Trees int `koanf:"trees"`

	// MaxDepth bounds individual tree depth.
	MaxDepth int `koanf:"max_depth"`

	// MinLeaf is the minimum number of samples in a leaf.
	MinLeaf int `koanf:"min_leaf"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig holds API middleware settings.
type APIConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Steam.APIBaseURL == "" {
		return fmt.Errorf("steam.api_base_url must not be empty")
	}
	if c.Steam.StoreBaseURL == "" {
		return fmt.Errorf("steam.store_base_url must not be empty")
	}
	if c.Steam.RequestsPerSecond <= 0 {
		return fmt.Errorf("steam.requests_per_second must be positive")
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path must be set for a persistent store")
	}
	if c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1 {
		return fmt.Errorf("store.gc_discard_ratio must be in (0, 1)")
	}
	if c.Catalog.SampleModulus < 0 {
		return fmt.Errorf("catalog.sample_modulus must not be negative")
	}
	if c.Recommend.TopK < 1 {
		return fmt.Errorf("recommend.top_k must be at least 1")
	}
	if c.Recommend.TrainFraction <= 0 || c.Recommend.TrainFraction >= 1 {
		return fmt.Errorf("recommend.train_fraction must be in (0, 1)")
	}
	if c.Recommend.Trees < 1 {
		return fmt.Errorf("recommend.trees must be at least 1")
	}
	if c.Enrich.RateLimitBackoff <= 0 {
		return fmt.Errorf("enrich.rate_limit_backoff must be positive")
	}
	return nil
}
