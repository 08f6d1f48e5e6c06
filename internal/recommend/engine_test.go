// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/tomtom215/ludarium/internal/config"
	"github.com/tomtom215/ludarium/internal/steam"
	"github.com/tomtom215/ludarium/internal/store"
)

type fakeLibrary struct {
	games []steam.OwnedGame
	err   error
}

func (f *fakeLibrary) GetOwnedGames(ctx context.Context, steamID string) ([]steam.OwnedGame, error) {
	return f.games, f.err
}

type fakeDetails struct {
	names map[int]string
}

func (f *fakeDetails) GetBasicDetails(ctx context.Context, appid int) (string, error) {
	if name, ok := f.names[appid]; ok {
		return name, nil
	}
	return "", steam.ErrAppNotFound
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(&config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedGame(t *testing.T, s *store.Store, appid int, name string, genres []string, score string) {
	t.Helper()
	done := true
	update := store.GameUpdate{
		Name:           &name,
		Genres:         genres,
		ReviewScore:    &score,
		DetailsFetched: &done,
	}
	if err := s.UpsertMerge(context.Background(), appid, update); err != nil {
		t.Fatalf("seed %d: %v", appid, err)
	}
}

func testRecommendConfig() *config.RecommendConfig {
	return &config.RecommendConfig{
		TopK:          5,
		TrainFraction: 0.8,
		Seed:          42,
		Trees:         20,
		MaxDepth:      6,
		MinLeaf:       1,
	}
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks unplayed games by predicted playtime", func(t *testing.T) {
		s := newTestStore(t)

		// Played: action games with heavy playtime, puzzle games barely
		// touched. The unplayed action title should rank first.
		var owned []steam.OwnedGame
		for i := 0; i < 10; i++ {
			actionID := 100 + i
			puzzleID := 200 + i
			seedGame(t, s, actionID, fmt.Sprintf("Action %d", i), []string{"Action"}, "90.00%")
			seedGame(t, s, puzzleID, fmt.Sprintf("Puzzle %d", i), []string{"Puzzle"}, "90.00%")
			owned = append(owned,
				steam.OwnedGame{AppID: actionID, PlaytimeForever: 2000 + i*10},
				steam.OwnedGame{AppID: puzzleID, PlaytimeForever: 10 + i},
			)
		}
		seedGame(t, s, 300, "Unplayed Action", []string{"Action"}, "90.00%")
		seedGame(t, s, 301, "Unplayed Puzzle", []string{"Puzzle"}, "90.00%")
		owned = append(owned,
			steam.OwnedGame{AppID: 300, PlaytimeForever: 0},
			steam.OwnedGame{AppID: 301, PlaytimeForever: 0},
		)

		engine := NewEngine(s, &fakeLibrary{games: owned}, nil, testRecommendConfig())
		result, err := engine.Recommend(ctx, "76561197960287930", 0)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}

		if result.Status != StatusOK {
			t.Fatalf("Status = %q, want ok (reason %q)", result.Status, result.Reason)
		}
		if result.TrainingSize != 20 || result.CandidateSize != 2 {
			t.Errorf("sizes = %d/%d, want 20 training / 2 candidates", result.TrainingSize, result.CandidateSize)
		}
		if len(result.Recommendations) != 2 {
			t.Fatalf("got %d recommendations, want 2", len(result.Recommendations))
		}
		if result.Recommendations[0].AppID != 300 {
			t.Errorf("top recommendation = %d (%s), want the unplayed action title",
				result.Recommendations[0].AppID, result.Recommendations[0].Name)
		}
		if result.Recommendations[0].PredictedMinutes <= result.Recommendations[1].PredictedMinutes {
			t.Error("recommendations not sorted by predicted playtime descending")
		}
	})

	t.Run("validation error stays below target variance", func(t *testing.T) {
		s := newTestStore(t)

		var owned []steam.OwnedGame
		var playtimes []float64
		for i := 0; i < 10; i++ {
			actionID := 100 + i
			puzzleID := 200 + i
			seedGame(t, s, actionID, fmt.Sprintf("Action %d", i), []string{"Action"}, "90.00%")
			seedGame(t, s, puzzleID, fmt.Sprintf("Puzzle %d", i), []string{"Puzzle"}, "90.00%")
			owned = append(owned,
				steam.OwnedGame{AppID: actionID, PlaytimeForever: 2000 + i*10},
				steam.OwnedGame{AppID: puzzleID, PlaytimeForever: 10 + i},
			)
			playtimes = append(playtimes, float64(2000+i*10), float64(10+i))
		}
		seedGame(t, s, 300, "Candidate", []string{"Action"}, "90.00%")
		owned = append(owned, steam.OwnedGame{AppID: 300, PlaytimeForever: 0})

		engine := NewEngine(s, &fakeLibrary{games: owned}, nil, testRecommendConfig())
		result, err := engine.Recommend(ctx, "76561197960287930", 0)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if result.Status != StatusOK {
			t.Fatalf("Status = %q, want ok (reason %q)", result.Status, result.Reason)
		}

		// A usable model must score better on held-out rows than always
		// predicting the mean playtime would.
		var mean float64
		for _, p := range playtimes {
			mean += p
		}
		mean /= float64(len(playtimes))
		var variance float64
		for _, p := range playtimes {
			diff := p - mean
			variance += diff * diff
		}
		variance /= float64(len(playtimes))

		if math.IsNaN(result.ValidationMSE) || math.IsInf(result.ValidationMSE, 0) {
			t.Fatalf("ValidationMSE = %f, want a finite value", result.ValidationMSE)
		}
		if result.ValidationMSE >= variance {
			t.Errorf("ValidationMSE = %f, want below target variance %f", result.ValidationMSE, variance)
		}
	})

	t.Run("limit truncates the ranking", func(t *testing.T) {
		s := newTestStore(t)
		var owned []steam.OwnedGame
		for i := 0; i < 5; i++ {
			seedGame(t, s, 100+i, fmt.Sprintf("Played %d", i), []string{"Action"}, "80.00%")
			owned = append(owned, steam.OwnedGame{AppID: 100 + i, PlaytimeForever: 500})
		}
		for i := 0; i < 4; i++ {
			seedGame(t, s, 200+i, fmt.Sprintf("Candidate %d", i), []string{"Action"}, "80.00%")
			owned = append(owned, steam.OwnedGame{AppID: 200 + i})
		}

		engine := NewEngine(s, &fakeLibrary{games: owned}, nil, testRecommendConfig())
		result, err := engine.Recommend(ctx, "76561197960287930", 2)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if len(result.Recommendations) != 2 {
			t.Errorf("got %d recommendations with limit 2, want 2", len(result.Recommendations))
		}
	})

	t.Run("no played overlap is insufficient data", func(t *testing.T) {
		s := newTestStore(t)
		seedGame(t, s, 100, "Candidate", []string{"Action"}, "80.00%")

		engine := NewEngine(s, &fakeLibrary{games: []steam.OwnedGame{{AppID: 100}}}, nil, testRecommendConfig())
		result, err := engine.Recommend(ctx, "76561197960287930", 0)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if result.Status != StatusInsufficientData {
			t.Errorf("Status = %q, want insufficient_data", result.Status)
		}
		if len(result.Recommendations) != 0 {
			t.Errorf("got %d recommendations, want none", len(result.Recommendations))
		}
	})

	t.Run("library fetch failure is a remote error", func(t *testing.T) {
		s := newTestStore(t)
		engine := NewEngine(s, &fakeLibrary{err: errors.New("profile service down")}, nil, testRecommendConfig())

		if _, err := engine.Recommend(ctx, "76561197960287930", 0); err == nil {
			t.Error("Recommend() error = nil, want remote failure surfaced")
		}
	})

	t.Run("sentinel records are never features", func(t *testing.T) {
		s := newTestStore(t)
		seedGame(t, s, 100, "Played", []string{"Action"}, "80.00%")
		seedGame(t, s, 101, "Unknown genre", store.GenreUnknown, "80.00%")
		seedGame(t, s, 102, "No score", []string{"Action"}, store.ReviewScoreNA)
		seedGame(t, s, 103, "Candidate", []string{"Action"}, "75.00%")

		owned := []steam.OwnedGame{
			{AppID: 100, PlaytimeForever: 300},
			{AppID: 101, PlaytimeForever: 900},
			{AppID: 102, PlaytimeForever: 900},
			{AppID: 103},
		}

		engine := NewEngine(s, &fakeLibrary{games: owned}, nil, testRecommendConfig())
		result, err := engine.Recommend(ctx, "76561197960287930", 0)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if result.TrainingSize != 1 {
			t.Errorf("TrainingSize = %d, want 1 (sentinel records excluded)", result.TrainingSize)
		}
		if result.CandidateSize != 1 {
			t.Errorf("CandidateSize = %d, want 1", result.CandidateSize)
		}
	})

	t.Run("name falls back through resolver to Unknown Game", func(t *testing.T) {
		s := newTestStore(t)
		seedGame(t, s, 100, "Played", []string{"Action"}, "80.00%")
		// Candidate with no stored name.
		done := true
		score := "75.00%"
		if err := s.UpsertMerge(ctx, 200, store.GameUpdate{Genres: []string{"Action"}, ReviewScore: &score, DetailsFetched: &done}); err != nil {
			t.Fatal(err)
		}
		if err := s.UpsertMerge(ctx, 201, store.GameUpdate{Genres: []string{"Action"}, ReviewScore: &score, DetailsFetched: &done}); err != nil {
			t.Fatal(err)
		}

		owned := []steam.OwnedGame{
			{AppID: 100, PlaytimeForever: 300},
			{AppID: 200},
			{AppID: 201},
		}

		resolver := NewNameResolver(&fakeDetails{names: map[int]string{200: "Resolved Name"}})
		engine := NewEngine(s, &fakeLibrary{games: owned}, resolver, testRecommendConfig())
		result, err := engine.Recommend(ctx, "76561197960287930", 0)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}

		names := make(map[int]string)
		for _, rec := range result.Recommendations {
			names[rec.AppID] = rec.Name
		}
		if names[200] != "Resolved Name" {
			t.Errorf("name for 200 = %q, want resolver result", names[200])
		}
		if names[201] != UnknownGameName {
			t.Errorf("name for 201 = %q, want %q", names[201], UnknownGameName)
		}
	})

	t.Run("deterministic output for a fixed seed", func(t *testing.T) {
		s := newTestStore(t)
		var owned []steam.OwnedGame
		for i := 0; i < 12; i++ {
			genre := "Action"
			if i%2 == 1 {
				genre = "RPG"
			}
			seedGame(t, s, 100+i, fmt.Sprintf("Played %d", i), []string{genre}, "85.00%")
			owned = append(owned, steam.OwnedGame{AppID: 100 + i, PlaytimeForever: 100 * (i + 1)})
		}
		for i := 0; i < 6; i++ {
			seedGame(t, s, 200+i, fmt.Sprintf("Candidate %d", i), []string{"Action"}, "85.00%")
			owned = append(owned, steam.OwnedGame{AppID: 200 + i})
		}

		engine := NewEngine(s, &fakeLibrary{games: owned}, nil, testRecommendConfig())
		first, err := engine.Recommend(ctx, "76561197960287930", 0)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		second, err := engine.Recommend(ctx, "76561197960287930", 0)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}

		if first.ValidationMSE != second.ValidationMSE {
			t.Errorf("ValidationMSE differs across identical runs: %f vs %f", first.ValidationMSE, second.ValidationMSE)
		}
		for i := range first.Recommendations {
			if first.Recommendations[i].AppID != second.Recommendations[i].AppID {
				t.Errorf("ranking differs at position %d: %d vs %d",
					i, first.Recommendations[i].AppID, second.Recommendations[i].AppID)
			}
		}
	})
}
