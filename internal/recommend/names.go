// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package recommend

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ludarium/internal/logging"
	"github.com/tomtom215/ludarium/internal/metrics"
)

// BasicDetailsFetcher resolves an appid to its display name.
type BasicDetailsFetcher interface {
	GetBasicDetails(ctx context.Context, appid int) (string, error)
}

// UnknownGameName is the fallback when a name cannot be resolved.
const UnknownGameName = "Unknown Game"

// NameResolver looks up game names behind a circuit breaker. Name lookups
// are one remote call per recommended item, so a struggling upstream must
// not turn a finished recommendation run into a hang.
type NameResolver struct {
	fetcher BasicDetailsFetcher
	breaker *gobreaker.CircuitBreaker[string]
}

// NewNameResolver wraps the fetcher with a breaker that opens after 5
// consecutive failures and probes again after 30 seconds.
func NewNameResolver(fetcher BasicDetailsFetcher) *NameResolver {
	settings := gobreaker.Settings{
		Name:        "steam-name-resolution",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	}

	return &NameResolver{
		fetcher: fetcher,
		breaker: gobreaker.NewCircuitBreaker[string](settings),
	}
}

// Resolve returns the game's display name, or UnknownGameName when the
// lookup fails for any reason. Resolution failures never fail the
// recommendation request.
func (r *NameResolver) Resolve(ctx context.Context, appid int) string {
	name, err := r.breaker.Execute(func() (string, error) {
		return r.fetcher.GetBasicDetails(ctx, appid)
	})
	if err != nil || name == "" {
		logging.Debug().Int("appid", appid).Err(err).Msg("Name resolution failed, using fallback")
		return UnknownGameName
	}
	return name
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
