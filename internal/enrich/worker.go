// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

// Package enrich implements the background enrichment worker.
//
// The worker drains the pending queue one item at a time:
//
//	PENDING -> CLAIMED -> ENRICHED | SKIPPED
//
// A claim optimistically sets details_fetched=true via the store's atomic
// FindAndClaim, so concurrent workers never process the same appid. Genre and
// review lookups retry indefinitely on rate-limit responses with a fixed
// backoff scoped to the current item; timeouts fall back to sentinel values;
// malformed responses tombstone the appid so it is never attempted again.
// Results are written to the store before the worker advances, so a crash
// mid-loop loses at most the in-flight item.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ludarium/internal/config"
	"github.com/tomtom215/ludarium/internal/logging"
	"github.com/tomtom215/ludarium/internal/metrics"
	"github.com/tomtom215/ludarium/internal/steam"
	"github.com/tomtom215/ludarium/internal/store"
)

// RemoteCatalog is the subset of the Steam client the worker consumes.
// Narrowed to an interface so tests can substitute fakes.
type RemoteCatalog interface {
	GetGenres(ctx context.Context, appid int) ([]string, error)
	GetReviewSummary(ctx context.Context, appid int) (*steam.ReviewSummary, error)
}

// Stats is a snapshot of worker progress for the status endpoint.
type Stats struct {
	Processed      int       `json:"processed"`
	Enriched       int       `json:"enriched"`
	Skipped        int       `json:"skipped"`
	RateLimitWaits int       `json:"rate_limit_waits"`
	LastAppID      int       `json:"last_appid,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
}

// Worker is the single logical consumer of the pending queue. Multiple
// workers may run concurrently; the store's claim primitive keeps them from
// colliding on an appid.
type Worker struct {
	store   *store.Store
	catalog RemoteCatalog
	cfg     config.EnrichConfig
	log     zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewWorker creates an enrichment worker.
func NewWorker(st *store.Store, catalog RemoteCatalog, cfg config.EnrichConfig) *Worker {
	return &Worker{
		store:   st,
		catalog: catalog,
		cfg:     cfg,
		log:     logging.With().Str("component", "enrich").Logger(),
	}
}

// Stats returns a snapshot of worker progress.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run drains the pending queue until ctx is canceled. The per-item retry
// loop is the unit of cancellation: an item is finished or abandoned whole,
// never mid-field-write.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	w.stats.StartedAt = time.Now().UTC()
	w.mu.Unlock()

	w.log.Info().
		Dur("item_delay", w.cfg.ItemDelay).
		Dur("rate_limit_backoff", w.cfg.RateLimitBackoff).
		Msg("enrichment worker started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := w.claimNext(ctx)
		if errors.Is(err, store.ErrNoPending) {
			if err := sleepCtx(ctx, w.cfg.IdleDelay); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("claim pending record: %w", err)
		}

		if err := w.ProcessOne(ctx, rec.AppID); err != nil {
			// Only cancellation escapes ProcessOne; remote and data
			// errors are absorbed into sentinels or tombstones.
			return err
		}

		if err := sleepCtx(ctx, w.cfg.ItemDelay); err != nil {
			return err
		}
	}
}

// claimNext transitions one PENDING item to CLAIMED and returns its
// pre-claim record.
func (w *Worker) claimNext(ctx context.Context) (*store.GameRecord, error) {
	claimed := true
	return w.store.FindAndClaim(ctx,
		func(rec *store.GameRecord) bool { return !rec.DetailsFetched },
		store.GameUpdate{DetailsFetched: &claimed},
	)
}

// ProcessOne runs the enrichment state machine for a single claimed appid.
// The resulting transition (ENRICHED or SKIPPED) is durably written before
// returning. Only context cancellation is returned as an error.
func (w *Worker) ProcessOne(ctx context.Context, appid int) error {
	start := time.Now()
	itemLog := w.log.With().Int("appid", appid).Logger()

	genres, err := w.fetchGenres(ctx, appid, itemLog)
	if err != nil {
		return w.finishItem(ctx, appid, err, itemLog)
	}

	score, err := w.fetchReviewScore(ctx, appid, itemLog)
	if err != nil {
		return w.finishItem(ctx, appid, err, itemLog)
	}

	update := store.GameUpdate{
		Genres:      genres,
		ReviewScore: &score,
	}
	if err := w.store.UpsertMerge(ctx, appid, update); err != nil {
		return fmt.Errorf("write enrichment for %d: %w", appid, err)
	}

	metrics.EnrichmentOutcomes.WithLabelValues("enriched").Inc()
	metrics.EnrichmentItemDuration.Observe(time.Since(start).Seconds())

	w.mu.Lock()
	w.stats.Processed++
	w.stats.Enriched++
	w.stats.LastAppID = appid
	w.mu.Unlock()

	itemLog.Debug().
		Strs("genres", genres).
		Str("review_score", score).
		Msg("record enriched")
	return nil
}

// finishItem handles a terminal failure from a field fetch: cancellation is
// propagated, anything else tombstones the appid (SKIPPED).
func (w *Worker) finishItem(ctx context.Context, appid int, cause error, itemLog zerolog.Logger) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}

	if err := w.store.PutError(ctx, appid, cause.Error()); err != nil {
		return fmt.Errorf("write tombstone for %d: %w", appid, err)
	}

	metrics.EnrichmentOutcomes.WithLabelValues("skipped").Inc()

	w.mu.Lock()
	w.stats.Processed++
	w.stats.Skipped++
	w.stats.LastAppID = appid
	w.stats.LastError = cause.Error()
	w.mu.Unlock()

	itemLog.Warn().Err(cause).Msg("record tombstoned, will never retry")
	return nil
}

// fetchGenres resolves the genre tags for an appid.
//
//   - success with genres  -> the genre list
//   - success, no genres   -> the Unknown sentinel
//   - explicit not-found   -> the Unknown sentinel
//   - timeout or transport -> logged, the Unknown sentinel (do not block the queue)
//   - rate limit           -> fixed backoff, retry the same call without bound
//   - malformed shape      -> error (caller tombstones)
func (w *Worker) fetchGenres(ctx context.Context, appid int, itemLog zerolog.Logger) ([]string, error) {
	for {
		genres, err := w.catalog.GetGenres(ctx, appid)
		switch {
		case err == nil:
			if len(genres) == 0 {
				return store.GenreUnknown, nil
			}
			return genres, nil

		case errors.Is(err, steam.ErrAppNotFound):
			return store.GenreUnknown, nil

		case errors.Is(err, steam.ErrRateLimited):
			if err := w.backoff(ctx, appid, "genres"); err != nil {
				return nil, err
			}

		case errors.Is(err, steam.ErrMalformedResponse):
			return nil, fmt.Errorf("genre lookup: %w", err)

		case errors.Is(err, context.Canceled):
			return nil, err

		default:
			// Timeouts and other transport failures: record the
			// sentinel rather than stalling the whole queue.
			itemLog.Warn().Err(err).Msg("genre lookup failed, recording Unknown")
			return store.GenreUnknown, nil
		}
	}
}

// fetchReviewScore resolves the review score for an appid with the same
// retry policy as fetchGenres. Scores are only meaningful with more than one
// review; otherwise the N/A sentinel is recorded.
func (w *Worker) fetchReviewScore(ctx context.Context, appid int, itemLog zerolog.Logger) (string, error) {
	for {
		summary, err := w.catalog.GetReviewSummary(ctx, appid)
		switch {
		case err == nil:
			return FormatReviewScore(summary.TotalPositive, summary.TotalReviews), nil

		case errors.Is(err, steam.ErrAppNotFound):
			return store.ReviewScoreNA, nil

		case errors.Is(err, steam.ErrRateLimited):
			if err := w.backoff(ctx, appid, "reviews"); err != nil {
				return "", err
			}

		case errors.Is(err, steam.ErrMalformedResponse):
			return "", fmt.Errorf("review lookup: %w", err)

		case errors.Is(err, context.Canceled):
			return "", err

		default:
			itemLog.Warn().Err(err).Msg("review lookup failed, recording N/A")
			return store.ReviewScoreNA, nil
		}
	}
}

// backoff sleeps the fixed rate-limit interval before the next retry of the
// same call. The sleep is local to one item; other workers keep going.
func (w *Worker) backoff(ctx context.Context, appid int, endpoint string) error {
	metrics.EnrichmentRateLimitRetries.Inc()

	w.mu.Lock()
	w.stats.RateLimitWaits++
	w.mu.Unlock()

	w.log.Debug().
		Int("appid", appid).
		Str("endpoint", endpoint).
		Dur("backoff", w.cfg.RateLimitBackoff).
		Msg("rate limited, backing off")

	return sleepCtx(ctx, w.cfg.RateLimitBackoff)
}

// FormatReviewScore computes the percentage string for a review summary.
// A total of one or fewer reviews carries no signal and yields the N/A
// sentinel, which also keeps the denominator nonzero.
func FormatReviewScore(positive, total int) string {
	if total <= 1 {
		return store.ReviewScoreNA
	}
	pct := 100 * float64(positive) / float64(total)
	return fmt.Sprintf("%.2f%%", pct)
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
