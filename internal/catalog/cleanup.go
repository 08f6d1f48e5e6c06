// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package catalog

import (
	"context"
	"fmt"

	"github.com/tomtom215/ludarium/internal/metrics"
	"github.com/tomtom215/ludarium/internal/store"
)

// Cleanup removes records that can never contribute to recommendations:
// genre lookups that found nothing (exactly the Unknown sentinel) and review
// scores that were computed but are not a well-formed percentage (including
// the N/A sentinel). Records still awaiting enrichment (empty review score)
// are untouched, so cleanup is safe to run while the worker drains the
// queue, and a second consecutive run deletes nothing.
func (s *Syncer) Cleanup(ctx context.Context) (int, error) {
	deleted, err := s.store.DeleteWhere(ctx, IsLowValue)
	if err != nil {
		return deleted, fmt.Errorf("cleanup: %w", err)
	}

	metrics.CatalogCleanupDeleted.Add(float64(deleted))
	s.log.Info().Int("deleted", deleted).Msg("cleanup complete")
	return deleted, nil
}

// IsLowValue reports whether a record qualifies for cleanup.
func IsLowValue(rec *store.GameRecord) bool {
	if len(rec.Genres) == 1 && rec.Genres[0] == store.GenreUnknown[0] {
		return true
	}
	// An empty score means "not yet computed", not "malformed".
	if rec.ReviewScore != "" && !rec.HasWellFormedScore() {
		return true
	}
	return false
}
