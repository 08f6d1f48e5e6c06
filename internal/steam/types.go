// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package steam

// App is one entry of the public app list.
type App struct {
	AppID int    `json:"appid"`
	Name  string `json:"name"`
}

// OwnedGame is one entry of a user's owned-games list.
type OwnedGame struct {
	AppID           int    `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"` // minutes
}

// ReviewSummary aggregates the storefront review counts for one app.
type ReviewSummary struct {
	TotalPositive int `json:"total_positive"`
	TotalReviews  int `json:"total_reviews"`
}

// Wire formats below mirror the Steam Web API and storefront responses.

type appListResponse struct {
	AppList struct {
		Apps []App `json:"apps"`
	} `json:"applist"`
}

type ownedGamesResponse struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []OwnedGame `json:"games"`
	} `json:"response"`
}

// appDetailsEntry is the per-appid value of the appdetails response map.
type appDetailsEntry struct {
	Success bool `json:"success"`
	Data    struct {
		Name   string `json:"name"`
		Genres []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"genres"`
	} `json:"data"`
}

type appReviewsResponse struct {
	// Success is 1 on success.
	Success      int            `json:"success"`
	QuerySummary *ReviewSummary `json:"query_summary"`
}
