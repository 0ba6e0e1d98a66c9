// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

//go:build wal

package wal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/metrics"
)

// Key prefixes separate the two entry states so Pending and Compact
// can iterate each without scanning the other.
const (
	prefixPending   = "pending:"
	prefixConfirmed = "confirmed:"
)

// badgerStore implements Store on BadgerDB. Writes are ACID; with
// SyncWrites every write is fsynced before returning.
type badgerStore struct {
	db   *badger.DB
	opts Options

	totalWrites   atomic.Int64
	totalConfirms atomic.Int64
	totalReplays  atomic.Int64

	mu             sync.RWMutex
	closed         bool
	lastCompaction time.Time

	now func() time.Time
}

// Open creates or reopens the store at opts.Path.
func Open(opts Options) (Store, error) {
	opts = opts.withDefaults()
	if opts.Path == "" {
		return nil, errors.New("wal: path required")
	}

	bo := badger.DefaultOptions(opts.Path)
	bo.SyncWrites = opts.SyncWrites
	bo.Logger = nil

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("wal: open badger: %w", err)
	}

	s := &badgerStore{
		db:   db,
		opts: opts,
		now:  time.Now,
	}
	s.lastCompaction = s.now()

	logging.Info().
		Str("path", opts.Path).
		Bool("sync_writes", opts.SyncWrites).
		Dur("retention", opts.Retention).
		Msg("event wal opened")
	return s, nil
}

func (s *badgerStore) Write(ctx context.Context, event interface{}) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if event == nil {
		return "", ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("wal: marshal event: %w", err)
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		Payload:   payload,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("wal: marshal entry: %w", err)
	}

	key := []byte(prefixPending + entry.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, data).WithTTL(s.opts.Retention)
		return txn.SetEntry(e)
	})
	if err != nil {
		return "", fmt.Errorf("wal: write entry: %w", err)
	}

	s.totalWrites.Add(1)
	metrics.RecordWALWrite()
	metrics.UpdateWALPending(s.pendingCount())
	return entry.ID, nil
}

func (s *badgerStore) Confirm(ctx context.Context, entryID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	pendingKey := []byte(prefixPending + entryID)
	confirmedKey := []byte(prefixConfirmed + entryID)

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get pending entry: %w", err)
		}

		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}

		now := s.now().UTC()
		entry.Confirmed = true
		entry.ConfirmedAt = &now

		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshal confirmed entry: %w", err)
		}
		if err := txn.SetEntry(badger.NewEntry(confirmedKey, data).WithTTL(s.opts.Retention)); err != nil {
			return fmt.Errorf("set confirmed entry: %w", err)
		}
		return txn.Delete(pendingKey)
	})
	if err != nil {
		return err
	}

	s.totalConfirms.Add(1)
	metrics.UpdateWALPending(s.pendingCount())
	return nil
}

// Pending snapshots unconfirmed entries under a View transaction, so
// concurrent writes never produce partial reads.
func (s *badgerStore) Pending(ctx context.Context) ([]*Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var entry Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("wal entry unreadable, skipping")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wal: iterate pending: %w", err)
	}
	return entries, nil
}

func (s *badgerStore) RecordAttempt(ctx context.Context, entryID, lastError string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	key := []byte(prefixPending + entryID)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}

		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}

		entry.Attempts++
		entry.LastAttemptAt = s.now().UTC()
		entry.LastError = lastError

		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(s.opts.Retention))
	})
}

func (s *badgerStore) Drop(ctx context.Context, entryID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixPending + entryID))
	})
	if err != nil {
		return fmt.Errorf("wal: drop entry: %w", err)
	}
	metrics.UpdateWALPending(s.pendingCount())
	return nil
}

// Compact removes confirmed entries and pending entries past the
// retention cutoff, then asks badger to reclaim value log space.
func (s *badgerStore) Compact(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().Add(-s.opts.Retention)
	var toDelete [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()

			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				// Unreadable entries are reclaimed rather than kept
				// forever.
				toDelete = append(toDelete, item.KeyCopy(nil))
				continue
			}

			switch {
			case entry.Confirmed:
				toDelete = append(toDelete, item.KeyCopy(nil))
			case entry.CreatedAt.Before(cutoff):
				logging.Warn().Str("entry_id", entry.ID).Int("attempts", entry.Attempts).
					Msg("wal entry expired unpublished")
				toDelete = append(toDelete, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("wal: scan for compaction: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range toDelete {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("wal: delete entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("wal: flush compaction batch: %w", err)
	}

	// Value log GC is advisory; ErrNoRewrite just means nothing to
	// reclaim yet.
	if err := s.db.RunValueLogGC(0.5); err != nil &&
		!errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
		logging.Debug().Err(err).Msg("wal value log gc")
	}

	s.mu.Lock()
	s.lastCompaction = s.now()
	s.mu.Unlock()

	metrics.UpdateWALPending(s.pendingCount())
	return len(toDelete), nil
}

func (s *badgerStore) Stats() Stats {
	s.mu.RLock()
	lastCompaction := s.lastCompaction
	s.mu.RUnlock()

	lsm, vlog := s.db.Size()
	return Stats{
		PendingCount:   s.countPrefix(prefixPending),
		ConfirmedCount: s.countPrefix(prefixConfirmed),
		TotalWrites:    s.totalWrites.Load(),
		TotalConfirms:  s.totalConfirms.Load(),
		TotalReplays:   s.totalReplays.Load(),
		LastCompaction: lastCompaction,
		DBSizeBytes:    lsm + vlog,
	}
}

func (s *badgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	logging.Info().Msg("event wal closing")
	return s.db.Close()
}

func (s *badgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *badgerStore) pendingCount() int64 {
	return s.countPrefix(prefixPending)
}

func (s *badgerStore) countPrefix(prefix string) int64 {
	var n int64
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			n++
		}
		return nil
	})
	return n
}
