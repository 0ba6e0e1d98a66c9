// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package wal

import (
	"context"
	"time"

	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/metrics"
)

// Retry republishes pending entries on an interval. It runs as a
// supervised service; the first pass fires immediately so entries left
// over from a previous run are recovered at startup.
type Retry struct {
	store       Store
	publisher   Publisher
	interval    time.Duration
	maxAttempts int
}

// NewRetry builds the retry service. maxAttempts <= 0 uses the store
// option default of 10.
func NewRetry(store Store, publisher Publisher, interval time.Duration, maxAttempts int) *Retry {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Retry{
		store:       store,
		publisher:   publisher,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Serve replays pending entries until the context is canceled.
func (r *Retry) Serve(ctx context.Context) error {
	// Startup recovery pass before the first tick.
	r.replay(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.replay(ctx)
		}
	}
}

func (r *Retry) String() string { return "wal-retry" }

// replay walks all pending entries once. Entries that exhaust their
// attempts are dropped so one poison event cannot wedge the buffer.
func (r *Retry) replay(ctx context.Context) {
	entries, err := r.store.Pending(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("wal retry: list pending")
		return
	}
	if len(entries) == 0 {
		return
	}

	var published, dropped, failed int
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if entry.Attempts >= r.maxAttempts {
			if err := r.store.Drop(ctx, entry.ID); err != nil {
				logging.Error().Err(err).Str("entry_id", entry.ID).Msg("wal retry: drop exhausted entry")
			} else {
				dropped++
			}
			continue
		}

		if err := r.publisher.PublishEntry(ctx, entry); err != nil {
			failed++
			if rerr := r.store.RecordAttempt(ctx, entry.ID, err.Error()); rerr != nil {
				logging.Error().Err(rerr).Str("entry_id", entry.ID).Msg("wal retry: record attempt")
			}
			continue
		}

		metrics.RecordWALReplay()
		published++
		if err := r.store.Confirm(ctx, entry.ID); err != nil {
			// Published but unconfirmed: dedup by message id on the
			// broker side absorbs the eventual double publish.
			logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("wal retry: confirm after replay")
		}
	}

	logging.Info().
		Int("pending", len(entries)).
		Int("published", published).
		Int("failed", failed).
		Int("dropped", dropped).
		Msg("wal retry pass complete")
}
