// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package services

import (
	"context"
	"errors"
)

// QueueWorker matches the enrichment worker's blocking Run loop.
type QueueWorker interface {
	Run(ctx context.Context) error
}

// EnrichService runs the enrichment worker under supervision. The worker
// already blocks on its own loop and honors cancellation, so the wrapper
// only normalizes the exit error: a context-canceled exit is a clean stop,
// anything else makes suture restart it.
type EnrichService struct {
	worker QueueWorker
}

// NewEnrichService wraps the worker for supervision.
func NewEnrichService(worker QueueWorker) *EnrichService {
	return &EnrichService{worker: worker}
}

// Serve implements suture.Service.
func (s *EnrichService) Serve(ctx context.Context) error {
	err := s.worker.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's event log.
func (s *EnrichService) String() string {
	return "enrichment-worker"
}
