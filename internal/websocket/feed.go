// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package websocket

import (
	"context"
	"time"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/models"
	"github.com/tomtom215/ostium/internal/stats"
)

// StatsUpdateData is the payload of a stats_update frame.
type StatsUpdateData struct {
	Timestamp string              `json:"timestamp"`
	Summary   models.StatsSummary `json:"summary"`
	Health    models.HealthScore  `json:"health"`
}

// Feed periodically pushes a windowed stats summary and health score
// to the hub. It runs as a supervised service alongside the hub.
type Feed struct {
	hub      *Hub
	agg      *stats.Aggregator
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewFeed builds the feed over the given aggregator using the stats
// configuration's window and feed interval.
func NewFeed(hub *Hub, agg *stats.Aggregator, cfg config.StatsConfig) *Feed {
	interval := cfg.FeedInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Hour
	}
	return &Feed{
		hub:      hub,
		agg:      agg,
		window:   window,
		interval: interval,
		now:      time.Now,
	}
}

// Serve pushes one stats_update per tick until the context is
// canceled. Skips the push when nobody is connected.
func (f *Feed) Serve(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if f.hub.ClientCount() == 0 {
				continue
			}
			f.push()
		}
	}
}

func (f *Feed) String() string { return "stats-feed" }

func (f *Feed) push() {
	f.hub.Broadcast(MessageTypeStatsUpdate, StatsUpdateData{
		Timestamp: f.now().UTC().Format(time.RFC3339),
		Summary:   f.agg.Summary(f.window),
		Health:    f.agg.HealthScore(f.window),
	})
}
