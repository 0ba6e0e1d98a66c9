// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package ratelimit

import (
	"context"
	"time"

	"github.com/tomtom215/ostium/internal/logging"
)

// Sweeper periodically removes expired window counters so idle caller
// keys do not accumulate. It implements suture.Service.
type Sweeper struct {
	limiter  *Limiter
	interval time.Duration
}

// NewSweeper creates a sweeper over the limiter. A non-positive
// interval falls back to one minute.
func NewSweeper(limiter *Limiter, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{limiter: limiter, interval: interval}
}

// Serve implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.limiter.Sweep(); removed > 0 {
				logging.Debug().
					Str("component", "ratelimit").
					Int("removed", removed).
					Msg("swept expired rate limit counters")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Sweeper) String() string {
	return "ratelimit-sweeper"
}
