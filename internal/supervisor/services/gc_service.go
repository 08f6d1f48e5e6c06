// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package services

import (
	"context"
	"time"
)

// ValueLogGC matches the store's GC entry point.
type ValueLogGC interface {
	RunGC(discardRatio float64)
}

// GCService periodically reclaims badger value-log space. Badger never runs
// value-log GC on its own; without this loop the store grows unbounded as
// enrichment rewrites records.
type GCService struct {
	store        ValueLogGC
	interval     time.Duration
	discardRatio float64
}

// NewGCService creates the GC loop. Zero values fall back to a 10-minute
// interval and badger's recommended 0.5 discard ratio.
func NewGCService(store ValueLogGC, interval time.Duration, discardRatio float64) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if discardRatio <= 0 || discardRatio >= 1 {
		discardRatio = 0.5
	}
	return &GCService{
		store:        store,
		interval:     interval,
		discardRatio: discardRatio,
	}
}

// Serve implements suture.Service.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.store.RunGC(s.discardRatio)
		}
	}
}

// String implements fmt.Stringer for suture's event log.
func (s *GCService) String() string {
	return "store-gc"
}
