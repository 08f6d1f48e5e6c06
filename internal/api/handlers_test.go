// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ludarium/internal/catalog"
	"github.com/tomtom215/ludarium/internal/config"
	"github.com/tomtom215/ludarium/internal/enrich"
	"github.com/tomtom215/ludarium/internal/recommend"
	"github.com/tomtom215/ludarium/internal/store"
)

type fakeCatalogService struct {
	syncResult *catalog.SyncResult
	syncErr    error
	deleted    int
	cleanupErr error
}

func (f *fakeCatalogService) Sync(ctx context.Context) (*catalog.SyncResult, error) {
	return f.syncResult, f.syncErr
}

func (f *fakeCatalogService) Cleanup(ctx context.Context) (int, error) {
	return f.deleted, f.cleanupErr
}

type fakeRecommender struct {
	result *recommend.Result
	err    error
}

func (f *fakeRecommender) Recommend(ctx context.Context, steamID string, limit int) (*recommend.Result, error) {
	return f.result, f.err
}

type fakeWorker struct{ stats enrich.Stats }

func (f *fakeWorker) Stats() enrich.Stats { return f.stats }

func newTestServer(t *testing.T, cat CatalogService, rec Recommender) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.Open(&config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	handlers := NewHandlers(s, cat, rec, &fakeWorker{stats: enrich.Stats{Processed: 7}})
	router := NewRouter(&config.APIConfig{
		RateLimitDisabled: true,
		RateLimitReqs:     100,
		RateLimitWindow:   time.Minute,
	}, handlers)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, s
}

func decodeEnvelope(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCatalogService{}, &fakeRecommender{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusOK || !envelope.Success {
		t.Errorf("status = %d success = %v, want 200 ok", resp.StatusCode, envelope.Success)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID response header")
	}
}

func TestCatalogSyncEndpoint(t *testing.T) {
	t.Run("success returns the sync result", func(t *testing.T) {
		cat := &fakeCatalogService{syncResult: &catalog.SyncResult{Fetched: 100, Inserted: 10}}
		srv, _ := newTestServer(t, cat, &fakeRecommender{})

		resp, err := http.Post(srv.URL+"/api/v1/catalog/sync", "application/json", http.NoBody)
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		envelope := decodeEnvelope(t, resp)
		if resp.StatusCode != http.StatusOK || !envelope.Success {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("upstream failure maps to 502", func(t *testing.T) {
		cat := &fakeCatalogService{syncErr: errors.New("steam unreachable")}
		srv, _ := newTestServer(t, cat, &fakeRecommender{})

		resp, err := http.Post(srv.URL+"/api/v1/catalog/sync", "application/json", http.NoBody)
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		envelope := decodeEnvelope(t, resp)
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
		if envelope.Error == nil || envelope.Error.Code != ErrCodeExternalServiceFail {
			t.Errorf("error = %+v, want %s", envelope.Error, ErrCodeExternalServiceFail)
		}
	})
}

func TestCatalogCleanupEndpoint(t *testing.T) {
	cat := &fakeCatalogService{deleted: 42}
	srv, _ := newTestServer(t, cat, &fakeRecommender{})

	resp, err := http.Post(srv.URL+"/api/v1/catalog/cleanup", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	if !envelope.Success {
		t.Fatalf("envelope = %+v, want success", envelope)
	}
	data, ok := envelope.Data.(map[string]interface{})
	if !ok || data["deleted"] != float64(42) {
		t.Errorf("data = %v, want deleted=42", envelope.Data)
	}
}

func TestEnrichmentStatusEndpoint(t *testing.T) {
	srv, s := newTestServer(t, &fakeCatalogService{}, &fakeRecommender{})

	name := "pending game"
	if err := s.UpsertMerge(context.Background(), 10, store.GameUpdate{Name: &name}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/enrichment/status")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	if !envelope.Success {
		t.Fatalf("envelope = %+v, want success", envelope)
	}

	data := envelope.Data.(map[string]interface{})
	states := data["states"].(map[string]interface{})
	if states["pending"] != float64(1) {
		t.Errorf("pending = %v, want 1", states["pending"])
	}
	worker := data["worker"].(map[string]interface{})
	if worker["processed"] != float64(7) {
		t.Errorf("worker.processed = %v, want 7", worker["processed"])
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	okResult := &recommend.Result{
		Status:          recommend.StatusOK,
		Recommendations: []recommend.Recommendation{{AppID: 620, Name: "Portal 2", PredictedMinutes: 800}},
	}

	tests := []struct {
		name       string
		url        string
		rec        Recommender
		wantStatus int
	}{
		{"valid request", "/api/v1/recommendations/76561197960287930", &fakeRecommender{result: okResult}, http.StatusOK},
		{"valid with limit", "/api/v1/recommendations/76561197960287930?limit=3", &fakeRecommender{result: okResult}, http.StatusOK},
		{"malformed steamid", "/api/v1/recommendations/bogus", &fakeRecommender{result: okResult}, http.StatusBadRequest},
		{"short steamid", "/api/v1/recommendations/12345", &fakeRecommender{result: okResult}, http.StatusBadRequest},
		{"limit out of range", "/api/v1/recommendations/76561197960287930?limit=0", &fakeRecommender{result: okResult}, http.StatusBadRequest},
		{"limit not a number", "/api/v1/recommendations/76561197960287930?limit=abc", &fakeRecommender{result: okResult}, http.StatusBadRequest},
		{"remote failure", "/api/v1/recommendations/76561197960287930", &fakeRecommender{err: errors.New("down")}, http.StatusBadGateway},
		{"insufficient data", "/api/v1/recommendations/76561197960287930", &fakeRecommender{result: &recommend.Result{Status: recommend.StatusInsufficientData, Reason: "no played games with enriched metadata"}}, http.StatusUnprocessableEntity},
		{"model error", "/api/v1/recommendations/76561197960287930", &fakeRecommender{result: &recommend.Result{Status: recommend.StatusModelError, Reason: "model training failed"}}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeCatalogService{}, tt.rec)

			resp, err := http.Get(srv.URL + tt.url)
			if err != nil {
				t.Fatalf("GET error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}

	t.Run("insufficient data carries its error code", func(t *testing.T) {
		rec := &fakeRecommender{result: &recommend.Result{
			Status: recommend.StatusInsufficientData,
			Reason: "no played games with enriched metadata",
		}}
		srv, _ := newTestServer(t, &fakeCatalogService{}, rec)

		resp, err := http.Get(srv.URL + "/api/v1/recommendations/76561197960287930")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		envelope := decodeEnvelope(t, resp)
		if envelope.Success {
			t.Error("envelope.Success = true, want false")
		}
		if envelope.Error == nil || envelope.Error.Code != ErrCodeInsufficientData {
			t.Errorf("envelope.Error = %+v, want code %q", envelope.Error, ErrCodeInsufficientData)
		}
	})
}

func TestGameEndpoint(t *testing.T) {
	srv, s := newTestServer(t, &fakeCatalogService{}, &fakeRecommender{})

	done := true
	name := "Portal 2"
	score := "95.00%"
	if err := s.UpsertMerge(context.Background(), 620, store.GameUpdate{
		Name: &name, Genres: []string{"Puzzle"}, ReviewScore: &score, DetailsFetched: &done,
	}); err != nil {
		t.Fatal(err)
	}

	t.Run("found", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/games/620")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		envelope := decodeEnvelope(t, resp)
		if resp.StatusCode != http.StatusOK || !envelope.Success {
			t.Fatalf("status = %d envelope = %+v", resp.StatusCode, envelope)
		}
		data := envelope.Data.(map[string]interface{})
		game := data["game"].(map[string]interface{})
		if game["name"] != "Portal 2" {
			t.Errorf("name = %v, want Portal 2", game["name"])
		}
	})

	t.Run("not found", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/games/999999")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("bad appid", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/games/not-a-number")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("tombstone included when present", func(t *testing.T) {
		if err := s.PutError(context.Background(), 620, "malformed response"); err != nil {
			t.Fatal(err)
		}
		resp, err := http.Get(srv.URL + "/api/v1/games/620")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		envelope := decodeEnvelope(t, resp)
		data := envelope.Data.(map[string]interface{})
		if _, ok := data["enrichment_error"]; !ok {
			t.Error("enrichment_error missing for tombstoned appid")
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCatalogService{}, &fakeRecommender{})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
