// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ludarium/config.yaml",
	"/etc/ludarium/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Steam: SteamConfig{
			APIKey:            "",
			APIBaseURL:        "https://api.steampowered.com",
			StoreBaseURL:      "https://store.steampowered.com",
			RequestTimeout:    15 * time.Second,
			RequestsPerSecond: 1.0,
			Burst:             1,
		},
		Store: StoreConfig{
			Path:           "/data/ludarium",
			InMemory:       false,
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Enrich: EnrichConfig{
			Enabled:          true,
			ItemDelay:        2 * time.Second,
			IdleDelay:        30 * time.Second,
			RateLimitBackoff: 20 * time.Second,
		},
		Catalog: CatalogConfig{
			// The public app list is around 200k entries; sampling every
			// tenth appid keeps a fresh deployment's enrichment queue
			// tractable. Set to 0 to load everything.
			SampleModulus: 10,
		},
		Recommend: RecommendConfig{
			TopK:          5,
			TrainFraction: 0.8,
			Seed:          42,
			Trees:         100,
			MaxDepth:      12,
			MinLeaf:       2,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8860,
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			CORSOrigins:       []string{},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when sourced from environment variables.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file) - leave it alone.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - STEAM_API_KEY -> steam.api_key
//   - ENRICH_ITEM_DELAY -> enrich.item_delay
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Steam mappings
		"steam_api_key":             "steam.api_key",
		"steam_api_base_url":        "steam.api_base_url",
		"steam_store_base_url":      "steam.store_base_url",
		"steam_request_timeout":     "steam.request_timeout",
		"steam_requests_per_second": "steam.requests_per_second",
		"steam_burst":               "steam.burst",

		// Store mappings
		"store_path":             "store.path",
		"store_in_memory":        "store.in_memory",
		"store_gc_interval":      "store.gc_interval",
		"store_gc_discard_ratio": "store.gc_discard_ratio",

		// Enrichment worker mappings
		"enrich_enabled":            "enrich.enabled",
		"enrich_item_delay":         "enrich.item_delay",
		"enrich_idle_delay":         "enrich.idle_delay",
		"enrich_rate_limit_backoff": "enrich.rate_limit_backoff",

		// Catalog mappings
		"catalog_sample_modulus": "catalog.sample_modulus",

		// Recommendation engine mappings
		"recommend_top_k":          "recommend.top_k",
		"recommend_train_fraction": "recommend.train_fraction",
		"recommend_seed":           "recommend.seed",
		"recommend_trees":          "recommend.trees",
		"recommend_max_depth":      "recommend.max_depth",
		"recommend_min_leaf":       "recommend.min_leaf",

		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// API mappings
		"cors_origins":        "api.cors_origins",
		"rate_limit_requests": "api.rate_limit_reqs",
		"rate_limit_window":   "api.rate_limit_window",
		"disable_rate_limit":  "api.rate_limit_disabled",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables cannot
	// pollute the config.
	return ""
}
