// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package stats keeps a bounded in-memory history of per-request
// metrics and serves windowed aggregates over it: summaries,
// percentiles, slow-endpoint rankings, error distributions, traffic
// patterns, and a composite health score.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/models"
)

// Aggregator owns the request metric history. Appends are O(1) under
// a write lock; queries copy the window they need and aggregate
// outside any lock on shared state beyond the read.
type Aggregator struct {
	cfg config.StatsConfig

	mu sync.RWMutex
	// history holds entries in arrival order. Entries carry the
	// request's start time, so concurrent requests of different
	// durations can land with interleaved timestamps; windowing and
	// compaction scan instead of assuming sorted input.
	history []models.RequestMetric

	// now is the clock; tests substitute a fake.
	now func() time.Time
}

// NewAggregator creates an empty history bounded by cfg.
func NewAggregator(cfg config.StatsConfig) *Aggregator {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100000
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &Aggregator{
		cfg:     cfg,
		history: make([]models.RequestMetric, 0, 1024),
		now:     time.Now,
	}
}

// Record appends one completed request. When the history is at
// capacity the oldest entry is dropped so the append never blocks on
// compaction.
func (a *Aggregator) Record(m models.RequestMetric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = a.now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.history) >= a.cfg.Capacity {
		a.history = a.history[1:]
	}
	a.history = append(a.history, m)
}

// Len returns the current history size.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.history)
}

// window copies the entries newer than now-window.
func (a *Aggregator) window(window time.Duration) []models.RequestMetric {
	if window <= 0 {
		window = a.cfg.Window
	}
	cutoff := a.now().Add(-window)

	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.RequestMetric, 0, len(a.history))
	for _, m := range a.history {
		if m.Timestamp.After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// Summary aggregates the requested window. A zero window uses the
// configured default.
func (a *Aggregator) Summary(window time.Duration) models.StatsSummary {
	if window <= 0 {
		window = a.cfg.Window
	}
	entries := a.window(window)

	s := models.StatsSummary{
		WindowSeconds: int(window.Seconds()),
		RequestCount:  len(entries),
	}
	if len(entries) == 0 {
		return s
	}

	latencies := make([]float64, 0, len(entries))
	byBackend := make(map[string]*models.BackendStats)
	var totalMS float64

	for _, m := range entries {
		ms := float64(m.ResponseTime) / float64(time.Millisecond)
		latencies = append(latencies, ms)
		totalMS += ms

		if m.IsError() {
			s.ErrorCount++
		}
		switch m.StatusClass() {
		case "1xx":
			s.StatusClasses.Class1xx++
		case "2xx":
			s.StatusClasses.Class2xx++
		case "3xx":
			s.StatusClasses.Class3xx++
		case "4xx":
			s.StatusClasses.Class4xx++
		case "5xx":
			s.StatusClasses.Class5xx++
		}

		if m.Backend != "" {
			b, ok := byBackend[m.Backend]
			if !ok {
				b = &models.BackendStats{Backend: m.Backend}
				byBackend[m.Backend] = b
			}
			b.RequestCount++
			if m.IsError() {
				b.ErrorCount++
			}
			// AvgResponseMS accumulates the sum here; divided below.
			b.AvgResponseMS += ms
		}
	}

	s.ErrorRate = float64(s.ErrorCount) / float64(len(entries))
	s.AvgResponseMS = totalMS / float64(len(entries))

	sort.Float64s(latencies)
	s.MedianResponseMS = percentile(latencies, 50)
	s.P95ResponseMS = percentile(latencies, 95)
	s.P99ResponseMS = percentile(latencies, 99)

	s.Backends = make([]models.BackendStats, 0, len(byBackend))
	for _, b := range byBackend {
		b.AvgResponseMS /= float64(b.RequestCount)
		s.Backends = append(s.Backends, *b)
	}
	sort.Slice(s.Backends, func(i, j int) bool {
		return s.Backends[i].Backend < s.Backends[j].Backend
	})

	return s
}

// percentile returns the nearest-rank percentile of sorted (ascending)
// values: index = ceil(p/100 * n) - 1, clamped to [0, n-1].
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// SlowEndpoints ranks (method, normalized path) groups in the window
// by average latency descending. A non-positive limit returns every
// group.
func (a *Aggregator) SlowEndpoints(window time.Duration, limit int) []models.SlowEndpoint {
	entries := a.window(window)

	type acc struct {
		count int
		sumMS float64
	}
	groups := make(map[[2]string]*acc)
	for _, m := range entries {
		key := [2]string{m.Method, m.Path}
		g, ok := groups[key]
		if !ok {
			g = &acc{}
			groups[key] = g
		}
		g.count++
		g.sumMS += float64(m.ResponseTime) / float64(time.Millisecond)
	}

	out := make([]models.SlowEndpoint, 0, len(groups))
	for key, g := range groups {
		out = append(out, models.SlowEndpoint{
			Method:        key[0],
			Path:          key[1],
			RequestCount:  g.count,
			AvgResponseMS: g.sumMS / float64(g.count),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgResponseMS != out[j].AvgResponseMS {
			return out[i].AvgResponseMS > out[j].AvgResponseMS
		}
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ErrorDistribution breaks down error responses (status >= 400) in the
// window by status code, by endpoint, and by backend.
func (a *Aggregator) ErrorDistribution(window time.Duration) models.ErrorDistribution {
	entries := a.window(window)

	dist := models.ErrorDistribution{
		ByStatus:  make(map[int]int),
		ByBackend: make(map[string]int),
	}
	byEndpoint := make(map[[2]string]int)

	for _, m := range entries {
		if !m.IsError() {
			continue
		}
		dist.Total++
		dist.ByStatus[m.StatusCode]++
		byEndpoint[[2]string{m.Method, m.Path}]++
		if m.Backend != "" {
			dist.ByBackend[m.Backend]++
		}
	}

	dist.ByEndpoint = make([]models.EndpointErrors, 0, len(byEndpoint))
	for key, count := range byEndpoint {
		dist.ByEndpoint = append(dist.ByEndpoint, models.EndpointErrors{
			Method: key[0],
			Path:   key[1],
			Count:  count,
		})
	}
	sort.Slice(dist.ByEndpoint, func(i, j int) bool {
		if dist.ByEndpoint[i].Count != dist.ByEndpoint[j].Count {
			return dist.ByEndpoint[i].Count > dist.ByEndpoint[j].Count
		}
		if dist.ByEndpoint[i].Path != dist.ByEndpoint[j].Path {
			return dist.ByEndpoint[i].Path < dist.ByEndpoint[j].Path
		}
		return dist.ByEndpoint[i].Method < dist.ByEndpoint[j].Method
	})

	return dist
}

// trafficBucketSize is the fixed traffic pattern resolution.
const trafficBucketSize = 5 * time.Minute

// trafficBuckets covers the last hour.
const trafficBuckets = 12

// TrafficPattern returns twelve five-minute buckets covering the last
// hour, oldest first, aligned to wall-clock five-minute boundaries.
// Empty slots carry zero counts so charts stay gap-free.
func (a *Aggregator) TrafficPattern() []models.TrafficBucket {
	entries := a.window(time.Hour)

	latest := a.now().Truncate(trafficBucketSize)
	first := latest.Add(-(trafficBuckets - 1) * trafficBucketSize)

	out := make([]models.TrafficBucket, trafficBuckets)
	sums := make([]float64, trafficBuckets)
	for i := range out {
		out[i].Start = first.Add(time.Duration(i) * trafficBucketSize)
	}

	for _, m := range entries {
		idx := int(m.Timestamp.Sub(first) / trafficBucketSize)
		if idx < 0 || idx >= trafficBuckets {
			continue
		}
		out[idx].RequestCount++
		if m.IsError() {
			out[idx].ErrorCount++
		}
		sums[idx] += float64(m.ResponseTime) / float64(time.Millisecond)
	}

	for i := range out {
		if out[i].RequestCount > 0 {
			out[i].AvgResponseMS = sums[i] / float64(out[i].RequestCount)
		}
	}
	return out
}

// Compact drops entries older than the retention horizon, enforces the
// capacity cap oldest-first, and reclaims backing storage.
func (a *Aggregator) Compact() (removed int) {
	cutoff := a.now().Add(-a.cfg.Retention)

	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.history[:0:0]
	for _, m := range a.history {
		if m.Timestamp.After(cutoff) {
			kept = append(kept, m)
		}
	}
	if over := len(kept) - a.cfg.Capacity; over > 0 {
		kept = kept[over:]
	}
	removed = len(a.history) - len(kept)

	fresh := make([]models.RequestMetric, len(kept), max(len(kept)*2, 1024))
	copy(fresh, kept)
	a.history = fresh
	return removed
}
