// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package stats

import (
	"context"
	"time"

	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/metrics"
)

// Compactor periodically prunes the metric history so retention and
// capacity hold even while appends continue. It implements
// suture.Service.
type Compactor struct {
	agg      *Aggregator
	interval time.Duration
}

// NewCompactor creates a compactor over the aggregator. A non-positive
// interval falls back to one minute.
func NewCompactor(agg *Aggregator, interval time.Duration) *Compactor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Compactor{agg: agg, interval: interval}
}

// Serve implements suture.Service.
func (c *Compactor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := c.agg.Compact()
			metrics.UpdateMetricsHistory(c.agg.Len(), true)
			if removed > 0 {
				logging.Debug().
					Str("component", "stats").
					Int("removed", removed).
					Int("remaining", c.agg.Len()).
					Msg("compacted request metric history")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (c *Compactor) String() string {
	return "stats-compactor"
}
