// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

// Package steam is the remote catalog client for the Steam Web API and the
// storefront API.
//
// The client does network I/O and response parsing only. It classifies
// failures (rate limit, not found, timeout, malformed shape) so callers can
// apply their own retry policy; it never retries internally.
package steam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ludarium/internal/config"
)

var (
	// ErrRateLimited is returned for HTTP 429 responses. Callers decide
	// whether and how long to back off.
	ErrRateLimited = errors.New("steam: rate limited")

	// ErrAppNotFound is returned when the storefront reports no data for
	// an appid (success=false) - distinguishable from an empty-genre
	// success and from transport failures.
	ErrAppNotFound = errors.New("steam: app not found")

	// ErrMalformedResponse is returned when a response decodes but lacks
	// the expected shape. Callers treat this as a permanent failure.
	ErrMalformedResponse = errors.New("steam: malformed response")
)

// IsTimeout reports whether err is a request timeout or deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// maxBodySize bounds response reads. The app list is the largest payload at
// a few tens of MB.
const maxBodySize = 64 << 20

// Client talks to the Steam Web API (api key endpoints) and the storefront
// API (public endpoints). Safe for concurrent use; an internal token-bucket
// limiter paces all outgoing requests.
type Client struct {
	apiBase   string
	storeBase string
	apiKey    string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Steam client from configuration.
func NewClient(cfg *config.SteamConfig) *Client {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		apiBase:   cfg.APIBaseURL,
		storeBase: cfg.StoreBaseURL,
		apiKey:    cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// ListAllApps fetches the full public app list ({appid, name} pairs).
func (c *Client) ListAllApps(ctx context.Context) ([]App, error) {
	params := url.Values{}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s/ISteamApps/GetAppList/v2/?%s", c.apiBase, params.Encode())

	var out appListResponse
	if err := c.getJSON(ctx, reqURL, &out); err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	if out.AppList.Apps == nil {
		return nil, fmt.Errorf("list apps: missing applist.apps: %w", ErrMalformedResponse)
	}
	return out.AppList.Apps, nil
}

// GetGenres fetches the genre descriptions for one app from the storefront.
// An explicit success=false response maps to ErrAppNotFound; a success with
// no genres returns an empty (non-nil) slice.
func (c *Client) GetGenres(ctx context.Context, appid int) ([]string, error) {
	entry, err := c.appDetails(ctx, appid, "")
	if err != nil {
		return nil, fmt.Errorf("get genres for %d: %w", appid, err)
	}

	genres := make([]string, 0, len(entry.Data.Genres))
	for _, g := range entry.Data.Genres {
		genres = append(genres, g.Description)
	}
	return genres, nil
}

// GetBasicDetails fetches the display name for one app.
func (c *Client) GetBasicDetails(ctx context.Context, appid int) (string, error) {
	entry, err := c.appDetails(ctx, appid, "basic")
	if err != nil {
		return "", fmt.Errorf("get basic details for %d: %w", appid, err)
	}
	if entry.Data.Name == "" {
		return "", fmt.Errorf("get basic details for %d: missing name: %w", appid, ErrMalformedResponse)
	}
	return entry.Data.Name, nil
}

// GetReviewSummary fetches the aggregate review counts for one app.
func (c *Client) GetReviewSummary(ctx context.Context, appid int) (*ReviewSummary, error) {
	params := url.Values{}
	params.Set("json", "1")
	params.Set("language", "all")
	params.Set("purchase_type", "all")
	params.Set("num_per_page", "0")
	reqURL := fmt.Sprintf("%s/appreviews/%d?%s", c.storeBase, appid, params.Encode())

	var out appReviewsResponse
	if err := c.getJSON(ctx, reqURL, &out); err != nil {
		return nil, fmt.Errorf("get reviews for %d: %w", appid, err)
	}
	if out.Success != 1 {
		return nil, fmt.Errorf("get reviews for %d: %w", appid, ErrAppNotFound)
	}
	if out.QuerySummary == nil {
		return nil, fmt.Errorf("get reviews for %d: missing query_summary: %w", appid, ErrMalformedResponse)
	}
	return out.QuerySummary, nil
}

// GetOwnedGames fetches a user's owned games with names and playtimes.
func (c *Client) GetOwnedGames(ctx context.Context, steamID string) ([]OwnedGame, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("steamid", steamID)
	params.Set("include_appinfo", "1")
	params.Set("include_played_free_games", "1")
	reqURL := fmt.Sprintf("%s/IPlayerService/GetOwnedGames/v1/?%s", c.apiBase, params.Encode())

	var out ownedGamesResponse
	if err := c.getJSON(ctx, reqURL, &out); err != nil {
		return nil, fmt.Errorf("get owned games for %s: %w", steamID, err)
	}
	// A private profile yields an empty response object, not an error.
	return out.Response.Games, nil
}

// appDetails fetches one entry of the storefront appdetails map, optionally
// restricted by filter ("basic" keeps the payload small for name lookups).
func (c *Client) appDetails(ctx context.Context, appid int, filter string) (*appDetailsEntry, error) {
	params := url.Values{}
	params.Set("appids", strconv.Itoa(appid))
	if filter != "" {
		params.Set("filters", filter)
	}
	reqURL := fmt.Sprintf("%s/api/appdetails?%s", c.storeBase, params.Encode())

	// appdetails keys the response map by the requested appid string.
	var out map[string]appDetailsEntry
	if err := c.getJSON(ctx, reqURL, &out); err != nil {
		return nil, err
	}

	entry, ok := out[strconv.Itoa(appid)]
	if !ok {
		return nil, fmt.Errorf("appdetails missing entry for %d: %w", appid, ErrMalformedResponse)
	}
	if !entry.Success {
		return nil, ErrAppNotFound
	}
	return &entry, nil
}

// getJSON performs a paced GET and decodes the JSON body into result.
func (c *Client) getJSON(ctx context.Context, reqURL string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w: %v", ErrMalformedResponse, err)
	}
	return nil
}
