// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package store

import (
	"regexp"
	"time"
)

// GenreUnknown is the sentinel genre list meaning "lookup attempted, no genre
// data available". Distinct from an empty list, which means "not yet checked".
var GenreUnknown = []string{"Unknown"}

// ReviewScoreNA is the sentinel review score for items with insufficient
// review volume.
const ReviewScoreNA = "N/A"

// reviewScorePattern matches a well-formed percentage review score such as
// "87.50%".
var reviewScorePattern = regexp.MustCompile(`^\d+(\.\d+)?%$`)

// GameRecord is the persisted per-app document. At most one record exists per
// AppID. Genres and ReviewScore, once set to a non-placeholder value, are not
// rewritten unless re-enrichment is explicitly requested.
type GameRecord struct {
	AppID int `json:"appid"`

	// Name is the display name. For un-enriched stubs the authoritative
	// copy may live only on the Steam side.
	Name string `json:"name,omitempty"`

	// Genres is nil until an enrichment attempt, GenreUnknown when the
	// lookup found no genre data, otherwise the ordered genre tags.
	Genres []string `json:"genres,omitempty"`

	// ReviewScore is "" (not yet computed), ReviewScoreNA (insufficient
	// review volume), or a percentage string like "87.50%".
	ReviewScore string `json:"review_score,omitempty"`

	// DetailsFetched is set optimistically when the record is claimed for
	// enrichment and stays true once an attempt has been made.
	DetailsFetched bool `json:"details_fetched"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// HasKnownGenres reports whether genre enrichment produced usable data.
func (g *GameRecord) HasKnownGenres() bool {
	if len(g.Genres) == 0 {
		return false
	}
	return !(len(g.Genres) == 1 && g.Genres[0] == GenreUnknown[0])
}

// HasWellFormedScore reports whether ReviewScore is a percentage string.
// The N/A sentinel is not well-formed; it marks insufficient data.
func (g *GameRecord) HasWellFormedScore() bool {
	return reviewScorePattern.MatchString(g.ReviewScore)
}

// ErrorRecord is a tombstone: its presence for an appid permanently excludes
// that appid from enrichment. Written once, never mutated.
type ErrorRecord struct {
	AppID     int       `json:"appid"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// GameUpdate is a partial update applied with merge semantics. Nil fields are
// left untouched on the stored record, so repeating the same update is
// idempotent.
type GameUpdate struct {
	Name           *string
	Genres         []string
	ReviewScore    *string
	DetailsFetched *bool
}

// apply merges the update into rec.
func (u *GameUpdate) apply(rec *GameRecord) {
	if u.Name != nil {
		rec.Name = *u.Name
	}
	if u.Genres != nil {
		rec.Genres = u.Genres
	}
	if u.ReviewScore != nil {
		rec.ReviewScore = *u.ReviewScore
	}
	if u.DetailsFetched != nil {
		rec.DetailsFetched = *u.DetailsFetched
	}
}

// ItemState is the enrichment state of a catalog item, derived from the
// record and the presence of a tombstone.
type ItemState string

const (
	// StatePending - not yet claimed for enrichment.
	StatePending ItemState = "pending"

	// StateClaimed - claimed optimistically, enrichment fields not yet
	// written. A crash between claim and write leaves an item here.
	StateClaimed ItemState = "claimed"

	// StateEnriched - enrichment attempt completed (terminal).
	StateEnriched ItemState = "enriched"

	// StateSkipped - tombstoned, permanently excluded (terminal).
	StateSkipped ItemState = "skipped"
)

// StateOf derives the item state from a record and tombstone presence.
func StateOf(rec *GameRecord, tombstoned bool) ItemState {
	switch {
	case tombstoned:
		return StateSkipped
	case !rec.DetailsFetched:
		return StatePending
	case rec.Genres == nil && rec.ReviewScore == "":
		return StateClaimed
	default:
		return StateEnriched
	}
}

// StateCounts summarizes the store for the status endpoint.
type StateCounts struct {
	Pending  int `json:"pending"`
	Claimed  int `json:"claimed"`
	Enriched int `json:"enriched"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}
