// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

// Package metrics defines the Prometheus collectors for Ludarium.
//
// Instrumented surfaces:
//   - Enrichment worker throughput and retry behavior
//   - Catalog sync and cleanup volumes
//   - Recommendation training quality and request outcomes
//   - API endpoint latency and throughput
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Enrichment worker metrics
	EnrichmentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_outcomes_total",
			Help: "Total enrichment attempts by terminal outcome",
		},
		[]string{"outcome"}, // "enriched", "skipped"
	)

	EnrichmentRateLimitRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enrichment_rate_limit_retries_total",
			Help: "Total remote calls retried after an HTTP 429 response",
		},
	)

	EnrichmentItemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrichment_item_duration_seconds",
			Help:    "Wall time to enrich a single item, including backoff sleeps",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// Catalog metrics
	CatalogSyncInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_sync_inserted_total",
			Help: "Total game record stubs inserted by catalog sync",
		},
	)

	CatalogSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Duration of catalog sync runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	CatalogCleanupDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cleanup_deleted_total",
			Help: "Total low-value records removed by cleanup",
		},
	)

	// Recommendation engine metrics
	RecommendValidationMSE = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_validation_mse",
			Help: "Mean squared error on the validation split of the last training run",
		},
	)

	RecommendTrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_training_duration_seconds",
			Help:    "Duration of model training runs",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total recommendation requests by result",
		},
		[]string{"result"}, // "ok", "insufficient_data", "model_error", "remote_error"
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit breaker metrics (name resolution lookups)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
