// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

// Package store implements the persistent game-record cache on BadgerDB.
//
// Two logical collections are kept under key prefixes:
//
//	game:<appid>  GameRecord documents
//	err:<appid>   ErrorRecord tombstones
//
// All writes use merge semantics, so every operation is idempotent under
// repetition with the same arguments. FindAndClaim is the queue-pop primitive
// for the enrichment worker and guarantees at-most-one in-flight claim per
// appid under concurrent pollers.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ludarium/internal/config"
	"github.com/tomtom215/ludarium/internal/logging"
)

// Key prefixes for the two collections.
const (
	gameKeyPrefix  = "game:"
	errorKeyPrefix = "err:"
)

var (
	// ErrNotFound is returned by point lookups for absent records.
	ErrNotFound = errors.New("record not found")

	// ErrNoPending is returned by FindAndClaim when no record matches.
	ErrNoPending = errors.New("no pending record")
)

// Store is the badger-backed document cache. Safe for concurrent use.
type Store struct {
	db *badger.DB

	// claimMu serializes FindAndClaim so two pollers scanning the same
	// pending set cannot both commit a claim for one appid.
	claimMu sync.Mutex
}

// Open opens (creating if needed) a store at the configured path.
func Open(cfg *config.StoreConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing badger handle. Used by tests.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func gameKey(appid int) []byte {
	return []byte(fmt.Sprintf("%s%010d", gameKeyPrefix, appid))
}

func errorKey(appid int) []byte {
	return []byte(fmt.Sprintf("%s%010d", errorKeyPrefix, appid))
}

// UpsertMerge merges the given partial fields into the record for appid,
// creating the record if absent. Fields not mentioned are never deleted.
func (s *Store) UpsertMerge(ctx context.Context, appid int, update GameUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := getGame(txn, appid)
		if errors.Is(err, ErrNotFound) {
			rec = &GameRecord{AppID: appid}
		} else if err != nil {
			return err
		}

		update.apply(rec)
		rec.UpdatedAt = time.Now().UTC()
		return putGame(txn, rec)
	})
}

// Find returns the record for appid, or ErrNotFound.
func (s *Store) Find(ctx context.Context, appid int) (*GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *GameRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getGame(txn, appid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FindAndClaim atomically selects one record matching pred that has no
// tombstone, applies the claim update, and returns the pre-claim record.
// Returns ErrNoPending when nothing matches. The claim commit and the scan
// happen under one store-level mutex and one badger transaction, so
// concurrent callers never claim the same appid.
func (s *Store) FindAndClaim(ctx context.Context, pred func(*GameRecord) bool, claim GameUpdate) (*GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var claimed *GameRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(gameKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec GameRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode game record: %w", err)
			}

			if !pred(&rec) {
				continue
			}
			if hasError(txn, rec.AppID) {
				continue
			}

			// Return the pre-claim state; persist the claimed state.
			preClaim := rec
			claimed = &preClaim

			claim.apply(&rec)
			rec.UpdatedAt = time.Now().UTC()
			return putGame(txn, &rec)
		}
		return ErrNoPending
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// DeleteWhere removes every game record matching pred and returns the count.
// Safe to run concurrently with the worker: deletes go through the same
// transactional path as merges, and a second identical run deletes nothing.
func (s *Store) DeleteWhere(ctx context.Context, pred func(*GameRecord) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Collect matching keys first; deleting while iterating the same
	// transaction invalidates the iterator.
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(gameKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec GameRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode game record: %w", err)
			}
			if pred(&rec) {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan for delete: %w", err)
	}

	count := 0
	for _, key := range keys {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return count, fmt.Errorf("delete record: %w", err)
		}
		count++
	}
	return count, nil
}

// ListWhere returns all game records matching pred.
func (s *Store) ListWhere(ctx context.Context, pred func(*GameRecord) bool) ([]GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var recs []GameRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(gameKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec GameRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode game record: %w", err)
			}
			if pred(&rec) {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// PutError writes a tombstone for appid. Writing the same tombstone twice is
// a no-op in effect; the first error cause is kept.
func (s *Store) PutError(ctx context.Context, appid int, cause string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if hasError(txn, appid) {
			return nil
		}
		rec := ErrorRecord{
			AppID:     appid,
			Error:     cause,
			CreatedAt: time.Now().UTC(),
		}
		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("marshal error record: %w", err)
		}
		return txn.Set(errorKey(appid), data)
	})
}

// HasError reports whether a tombstone exists for appid.
func (s *Store) HasError(ctx context.Context, appid int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		found = hasError(txn, appid)
		return nil
	})
	return found, err
}

// FindError returns the tombstone for appid, or ErrNotFound.
func (s *Store) FindError(ctx context.Context, appid int) (*ErrorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec ErrorRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(errorKey(appid))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get error record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Counts tallies records per derived item state.
func (s *Store) Counts(ctx context.Context) (*StateCounts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := &StateCounts{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(gameKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec GameRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode game record: %w", err)
			}

			counts.Total++
			switch StateOf(&rec, hasError(txn, rec.AppID)) {
			case StatePending:
				counts.Pending++
			case StateClaimed:
				counts.Claimed++
			case StateEnriched:
				counts.Enriched++
			case StateSkipped:
				counts.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// RunGC triggers one badger value-log garbage collection pass.
func (s *Store) RunGC(discardRatio float64) {
	if err := s.db.RunValueLogGC(discardRatio); err != nil &&
		!errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
		logging.Warn().Err(err).Msg("badger value-log GC failed")
	}
}

// getGame reads and decodes a game record inside txn.
func getGame(txn *badger.Txn, appid int) (*GameRecord, error) {
	item, err := txn.Get(gameKey(appid))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game record: %w", err)
	}

	var rec GameRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("decode game record: %w", err)
	}
	return &rec, nil
}

// putGame encodes and writes a game record inside txn.
func putGame(txn *badger.Txn, rec *GameRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal game record: %w", err)
	}
	return txn.Set(gameKey(rec.AppID), data)
}

// hasError reports tombstone presence inside txn.
func hasError(txn *badger.Txn, appid int) bool {
	_, err := txn.Get(errorKey(appid))
	return err == nil
}
