// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

// Package recommend predicts which unplayed games in a user's library are
// worth their time. It trains a random forest on the games the user has
// already played (playtime as the target, genres and review score as
// features) and ranks the unplayed remainder by predicted playtime.
package recommend

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ludarium/internal/config"
	"github.com/tomtom215/ludarium/internal/logging"
	"github.com/tomtom215/ludarium/internal/metrics"
	"github.com/tomtom215/ludarium/internal/steam"
	"github.com/tomtom215/ludarium/internal/store"
)

// Result statuses. Insufficient data and model failures are reported as
// structured outcomes rather than errors, because the caller renders them
// for the user either way.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
	StatusModelError       = "model_error"
)

// OwnedGamesClient fetches a user's library with per-game playtime.
type OwnedGamesClient interface {
	GetOwnedGames(ctx context.Context, steamID string) ([]steam.OwnedGame, error)
}

// Recommendation is one ranked candidate.
type Recommendation struct {
	AppID            int     `json:"appid"`
	Name             string  `json:"name"`
	PredictedMinutes float64 `json:"predicted_minutes"`
}

// Result is the outcome of a recommendation run.
type Result struct {
	Status          string           `json:"status"`
	Reason          string           `json:"reason,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	TrainingSize    int              `json:"training_size"`
	CandidateSize   int              `json:"candidate_size"`
	ValidationMSE   float64          `json:"validation_mse,omitempty"`
}

// Engine joins store records with a user's playtime and runs model training
// per request. Model state is not cached between requests: libraries are
// small and the catalog changes underneath long-lived models.
type Engine struct {
	store   *store.Store
	library OwnedGamesClient
	names   *NameResolver
	cfg     *config.RecommendConfig
	log     zerolog.Logger
}

// NewEngine creates a recommendation engine.
func NewEngine(st *store.Store, library OwnedGamesClient, names *NameResolver, cfg *config.RecommendConfig) *Engine {
	return &Engine{
		store:   st,
		library: library,
		names:   names,
		cfg:     cfg,
		log:     logging.With().Str("component", "recommend").Logger(),
	}
}

// item is one fully-enriched game joined with the user's playtime.
type item struct {
	appid    int
	name     string
	genres   []string
	reviewPc float64
	playtime float64
}

// Recommend ranks the user's unplayed games by predicted playtime. The
// returned error is non-nil only for remote failures fetching the library;
// everything downstream of that is reported in Result.Status.
func (e *Engine) Recommend(ctx context.Context, steamID string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = e.cfg.TopK
	}

	owned, err := e.library.GetOwnedGames(ctx, steamID)
	if err != nil {
		metrics.RecommendRequests.WithLabelValues("remote_error").Inc()
		return nil, fmt.Errorf("fetch owned games: %w", err)
	}

	playtime := make(map[int]float64, len(owned))
	for _, g := range owned {
		playtime[g.AppID] = float64(g.PlaytimeForever)
	}

	items, err := e.loadItems(ctx, playtime)
	if err != nil {
		return nil, err
	}

	var training, candidates []item
	for _, it := range items {
		if it.playtime > 0 {
			training = append(training, it)
		} else {
			candidates = append(candidates, it)
		}
	}

	if len(training) == 0 {
		e.log.Info().Str("steam_id", steamID).Msg("No played games overlap the enriched catalog")
		metrics.RecommendRequests.WithLabelValues(StatusInsufficientData).Inc()
		return &Result{
			Status:          StatusInsufficientData,
			Reason:          "no played games with enrichment data; sync the catalog and let enrichment run",
			Recommendations: []Recommendation{},
			CandidateSize:   len(candidates),
		}, nil
	}

	result := e.train(ctx, training, candidates, limit)
	metrics.RecommendRequests.WithLabelValues(result.Status).Inc()
	return result, nil
}

// loadItems joins eligible store records with the playtime map. Only
// records with real genres and a well-formed review score can be encoded.
func (e *Engine) loadItems(ctx context.Context, playtime map[int]float64) ([]item, error) {
	records, err := e.store.ListWhere(ctx, func(rec *store.GameRecord) bool {
		return rec.HasKnownGenres() && rec.HasWellFormedScore()
	})
	if err != nil {
		return nil, fmt.Errorf("list enriched games: %w", err)
	}

	items := make([]item, 0, len(records))
	for _, rec := range records {
		pct, err := ParseReviewScore(rec.ReviewScore)
		if err != nil {
			// Eligible records always have a parseable score; a miss
			// here is a store bug worth surfacing in logs.
			e.log.Warn().Int("appid", rec.AppID).Str("score", rec.ReviewScore).Msg("Unparseable review score on eligible record")
			continue
		}
		items = append(items, item{
			appid:    rec.AppID,
			name:     rec.Name,
			genres:   rec.Genres,
			reviewPc: pct,
			playtime: playtime[rec.AppID],
		})
	}
	return items, nil
}

// train fits the forest and ranks candidates. Any panic out of the numeric
// code is converted into a model_error result.
func (e *Engine) train(ctx context.Context, training, candidates []item, limit int) (result *Result) {
	started := time.Now()
	defer func() {
		metrics.RecommendTrainingDuration.Observe(time.Since(started).Seconds())
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("Model training panicked")
			result = &Result{
				Status:          StatusModelError,
				Reason:          "model training failed",
				Recommendations: []Recommendation{},
				TrainingSize:    len(training),
				CandidateSize:   len(candidates),
			}
		}
	}()

	genreLists := make([][]string, 0, len(training)+len(candidates))
	for _, it := range training {
		genreLists = append(genreLists, it.genres)
	}
	for _, it := range candidates {
		genreLists = append(genreLists, it.genres)
	}
	encoder := NewFeatureEncoder(genreLists)

	fit, val := e.split(training)

	fitPcts := make([]float64, len(fit))
	for i, it := range fit {
		fitPcts[i] = it.reviewPc
	}
	encoder.FitScaler(fitPcts)

	encode := func(set []item) ([][]float64, []float64) {
		rows := make([][]float64, len(set))
		targets := make([]float64, len(set))
		for i, it := range set {
			rows[i] = encoder.Encode(it.genres, it.reviewPc)
			targets[i] = it.playtime
		}
		return rows, targets
	}
	fitRows, fitTargets := encode(fit)
	valRows, valTargets := encode(val)

	forest, err := TrainForest(fitRows, fitTargets, ForestConfig{
		Trees:    e.cfg.Trees,
		MaxDepth: e.cfg.MaxDepth,
		MinLeaf:  e.cfg.MinLeaf,
		Seed:     e.cfg.Seed,
	})
	if err != nil {
		e.log.Error().Err(err).Msg("Model training failed")
		return &Result{
			Status:          StatusModelError,
			Reason:          "model training failed",
			Recommendations: []Recommendation{},
			TrainingSize:    len(training),
			CandidateSize:   len(candidates),
		}
	}

	// With too few rows for a holdout the MSE degrades to an in-sample
	// figure, which is still worth logging for trend-watching.
	if len(valRows) == 0 {
		valRows, valTargets = fitRows, fitTargets
	}
	mse := meanSquaredError(forest, valRows, valTargets)
	metrics.RecommendValidationMSE.Set(mse)
	e.log.Info().
		Int("training_size", len(training)).
		Int("fit_size", len(fit)).
		Int("validation_size", len(val)).
		Int("candidates", len(candidates)).
		Float64("validation_mse", mse).
		Msg("Model trained")

	ranked := e.rank(forest, encoder, candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Name = e.resolveName(ctx, ranked[i].AppID, ranked[i].Name)
	}

	return &Result{
		Status:          StatusOK,
		Recommendations: ranked,
		TrainingSize:    len(training),
		CandidateSize:   len(candidates),
		ValidationMSE:   mse,
	}
}

// split shuffles the training set with the configured seed and carves off
// the validation tail.
func (e *Engine) split(training []item) (fit, val []item) {
	shuffled := make([]item, len(training))
	copy(shuffled, training)
	rng := rand.New(rand.NewSource(e.cfg.Seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cut := int(float64(len(shuffled)) * e.cfg.TrainFraction)
	if cut < 1 {
		cut = 1
	}
	if cut > len(shuffled) {
		cut = len(shuffled)
	}
	return shuffled[:cut], shuffled[cut:]
}

// rank predicts every candidate and sorts by predicted playtime descending,
// appid ascending on ties so output is stable run to run.
func (e *Engine) rank(forest *Forest, encoder *FeatureEncoder, candidates []item) []Recommendation {
	ranked := make([]Recommendation, 0, len(candidates))
	for _, it := range candidates {
		ranked = append(ranked, Recommendation{
			AppID:            it.appid,
			Name:             it.name,
			PredictedMinutes: forest.Predict(encoder.Encode(it.genres, it.reviewPc)),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].PredictedMinutes != ranked[j].PredictedMinutes {
			return ranked[i].PredictedMinutes > ranked[j].PredictedMinutes
		}
		return ranked[i].AppID < ranked[j].AppID
	})
	return ranked
}

// resolveName prefers the catalog name and falls back to a remote lookup.
func (e *Engine) resolveName(ctx context.Context, appid int, catalogName string) string {
	if catalogName != "" {
		return catalogName
	}
	if e.names == nil {
		return UnknownGameName
	}
	return e.names.Resolve(ctx, appid)
}

func meanSquaredError(forest *Forest, rows [][]float64, targets []float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for i, row := range rows {
		d := forest.Predict(row) - targets[i]
		sum += d * d
	}
	return sum / float64(len(rows))
}
