// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package recommend

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FeatureEncoder turns genre tags and a review percentage into a fixed-width
// numeric vector: one multi-hot indicator per vocabulary genre, then the
// standardized review score as the final column.
//
// Rows are always keyed by appid; nothing relies on positional alignment
// between separately built slices.
type FeatureEncoder struct {
	vocab []string
	index map[string]int

	// Standardization statistics for the review column, fit on the fit
	// partition only so validation rows cannot leak into the scaler.
	reviewMean   float64
	reviewStddev float64
}

// NewFeatureEncoder builds the genre vocabulary from the observed records.
// The vocabulary is sorted so the column order is deterministic.
func NewFeatureEncoder(genreLists [][]string) *FeatureEncoder {
	seen := make(map[string]struct{})
	for _, genres := range genreLists {
		for _, g := range genres {
			seen[g] = struct{}{}
		}
	}

	vocab := make([]string, 0, len(seen))
	for g := range seen {
		vocab = append(vocab, g)
	}
	sort.Strings(vocab)

	index := make(map[string]int, len(vocab))
	for i, g := range vocab {
		index[g] = i
	}

	return &FeatureEncoder{
		vocab:        vocab,
		index:        index,
		reviewStddev: 1,
	}
}

// Width is the encoded feature vector length.
func (e *FeatureEncoder) Width() int {
	return len(e.vocab) + 1
}

// Vocabulary returns the genre column order.
func (e *FeatureEncoder) Vocabulary() []string {
	return e.vocab
}

// FitScaler computes mean and standard deviation of the review column from
// the given percentages. A degenerate (constant or empty) column keeps a
// stddev of 1 so standardization is a plain shift.
func (e *FeatureEncoder) FitScaler(reviewPcts []float64) {
	if len(reviewPcts) == 0 {
		e.reviewMean = 0
		e.reviewStddev = 1
		return
	}

	var sum float64
	for _, p := range reviewPcts {
		sum += p
	}
	mean := sum / float64(len(reviewPcts))

	var sq float64
	for _, p := range reviewPcts {
		d := p - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(reviewPcts)))
	if stddev == 0 {
		stddev = 1
	}

	e.reviewMean = mean
	e.reviewStddev = stddev
}

// Encode produces the feature vector for one item. A game with genres [A, B]
// sets both the A and B indicator columns; genres outside the vocabulary are
// ignored.
func (e *FeatureEncoder) Encode(genres []string, reviewPct float64) []float64 {
	row := make([]float64, e.Width())
	for _, g := range genres {
		if i, ok := e.index[g]; ok {
			row[i] = 1
		}
	}
	row[len(e.vocab)] = (reviewPct - e.reviewMean) / e.reviewStddev
	return row
}

// ParseReviewScore parses a well-formed percentage string ("87.50%") into
// its numeric value in [0, 100].
func ParseReviewScore(s string) (float64, error) {
	trimmed := strings.TrimSuffix(s, "%")
	if trimmed == s {
		return 0, fmt.Errorf("review score %q lacks %% suffix", s)
	}
	pct, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("review score %q not numeric: %w", s, err)
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("review score %q out of range", s)
	}
	return pct, nil
}
