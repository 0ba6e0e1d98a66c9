// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package wal

import (
	"context"
	"time"

	"github.com/tomtom215/ostium/internal/logging"
)

// Compactor periodically reclaims confirmed and expired entries.
type Compactor struct {
	store    Store
	interval time.Duration
}

// NewCompactor builds the compaction service.
func NewCompactor(store Store, interval time.Duration) *Compactor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Compactor{store: store, interval: interval}
}

// Serve compacts on every tick until the context is canceled.
func (c *Compactor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := c.store.Compact(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("wal compaction failed")
				continue
			}
			if removed > 0 {
				logging.Debug().Int("removed", removed).Msg("wal compacted")
			}
		}
	}
}

func (c *Compactor) String() string { return "wal-compactor" }
