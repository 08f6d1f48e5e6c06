// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package steam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/ludarium/internal/config"
)

func newTestClient(apiURL, storeURL string) *Client {
	return NewClient(&config.SteamConfig{
		APIKey:            "test-key",
		APIBaseURL:        apiURL,
		StoreBaseURL:      storeURL,
		RequestTimeout:    2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
}

func TestListAllApps(t *testing.T) {
	t.Run("parses app list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/ISteamApps/GetAppList/v2/" {
				t.Errorf("path = %q", r.URL.Path)
			}
			w.Write([]byte(`{"applist":{"apps":[{"appid":10,"name":"Counter-Strike"},{"appid":20,"name":"Team Fortress Classic"}]}}`))
		}))
		defer srv.Close()

		apps, err := newTestClient(srv.URL, srv.URL).ListAllApps(context.Background())
		if err != nil {
			t.Fatalf("ListAllApps() error = %v", err)
		}
		want := []App{{AppID: 10, Name: "Counter-Strike"}, {AppID: 20, Name: "Team Fortress Classic"}}
		if !reflect.DeepEqual(apps, want) {
			t.Errorf("apps = %v, want %v", apps, want)
		}
	})

	t.Run("missing applist is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"unexpected":true}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL, srv.URL).ListAllApps(context.Background())
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("ListAllApps() error = %v, want ErrMalformedResponse", err)
		}
	})
}

func TestGetGenres(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    []string
		wantErr error
	}{
		{
			name:   "success with genres",
			status: http.StatusOK,
			body:   `{"620":{"success":true,"data":{"name":"Portal 2","genres":[{"id":"1","description":"Action"},{"id":"25","description":"Adventure"}]}}}`,
			want:   []string{"Action", "Adventure"},
		},
		{
			name:   "success with no genres yields empty slice",
			status: http.StatusOK,
			body:   `{"620":{"success":true,"data":{"name":"Portal 2"}}}`,
			want:   []string{},
		},
		{
			name:    "success false is not found",
			status:  http.StatusOK,
			body:    `{"620":{"success":false}}`,
			wantErr: ErrAppNotFound,
		},
		{
			name:    "429 is rate limited",
			status:  http.StatusTooManyRequests,
			body:    ``,
			wantErr: ErrRateLimited,
		},
		{
			name:    "non-JSON body is malformed",
			status:  http.StatusOK,
			body:    `<html>maintenance</html>`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "missing requested appid entry is malformed",
			status:  http.StatusOK,
			body:    `{"999":{"success":true}}`,
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/appdetails" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if got := r.URL.Query().Get("appids"); got != "620" {
					t.Errorf("appids = %q, want 620", got)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			genres, err := newTestClient(srv.URL, srv.URL).GetGenres(context.Background(), 620)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GetGenres() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetGenres() error = %v", err)
			}
			if !reflect.DeepEqual(genres, tt.want) {
				t.Errorf("GetGenres() = %v, want %v", genres, tt.want)
			}
		})
	}
}

func TestGetBasicDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filters"); got != "basic" {
			t.Errorf("filters = %q, want basic", got)
		}
		w.Write([]byte(`{"620":{"success":true,"data":{"name":"Portal 2"}}}`))
	}))
	defer srv.Close()

	name, err := newTestClient(srv.URL, srv.URL).GetBasicDetails(context.Background(), 620)
	if err != nil {
		t.Fatalf("GetBasicDetails() error = %v", err)
	}
	if name != "Portal 2" {
		t.Errorf("name = %q, want Portal 2", name)
	}
}

func TestGetReviewSummary(t *testing.T) {
	t.Run("parses query summary", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/appreviews/620" {
				t.Errorf("path = %q", r.URL.Path)
			}
			w.Write([]byte(`{"success":1,"query_summary":{"total_positive":190,"total_reviews":200}}`))
		}))
		defer srv.Close()

		summary, err := newTestClient(srv.URL, srv.URL).GetReviewSummary(context.Background(), 620)
		if err != nil {
			t.Fatalf("GetReviewSummary() error = %v", err)
		}
		if summary.TotalPositive != 190 || summary.TotalReviews != 200 {
			t.Errorf("summary = %+v, want 190/200", summary)
		}
	})

	t.Run("success zero is not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":0}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL, srv.URL).GetReviewSummary(context.Background(), 620)
		if !errors.Is(err, ErrAppNotFound) {
			t.Errorf("GetReviewSummary() error = %v, want ErrAppNotFound", err)
		}
	})

	t.Run("missing query summary is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":1}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL, srv.URL).GetReviewSummary(context.Background(), 620)
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("GetReviewSummary() error = %v, want ErrMalformedResponse", err)
		}
	})
}

func TestGetOwnedGames(t *testing.T) {
	t.Run("parses games with playtime", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/IPlayerService/GetOwnedGames/v1/" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.URL.Query().Get("steamid"); got != "76561197960287930" {
				t.Errorf("steamid = %q", got)
			}
			w.Write([]byte(`{"response":{"game_count":2,"games":[{"appid":10,"name":"Counter-Strike","playtime_forever":1200},{"appid":620,"name":"Portal 2","playtime_forever":0}]}}`))
		}))
		defer srv.Close()

		games, err := newTestClient(srv.URL, srv.URL).GetOwnedGames(context.Background(), "76561197960287930")
		if err != nil {
			t.Fatalf("GetOwnedGames() error = %v", err)
		}
		if len(games) != 2 || games[0].PlaytimeForever != 1200 {
			t.Errorf("games = %v", games)
		}
	})

	t.Run("private profile yields empty list without error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"response":{}}`))
		}))
		defer srv.Close()

		games, err := newTestClient(srv.URL, srv.URL).GetOwnedGames(context.Background(), "76561197960287930")
		if err != nil {
			t.Fatalf("GetOwnedGames() error = %v", err)
		}
		if len(games) != 0 {
			t.Errorf("games = %v, want empty", games)
		}
	})
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("IsTimeout(DeadlineExceeded) = false, want true")
	}
	if IsTimeout(errors.New("plain error")) {
		t.Error("IsTimeout(plain error) = true, want false")
	}
}
