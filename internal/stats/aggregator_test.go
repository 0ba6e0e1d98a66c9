// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/models"
)

var testBase = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testStatsConfig() config.StatsConfig {
	return config.StatsConfig{
		Retention:          24 * time.Hour,
		Capacity:           1000,
		Window:             time.Hour,
		CompactionInterval: time.Minute,
	}
}

func newTestAggregator(now time.Time) *Aggregator {
	a := NewAggregator(testStatsConfig())
	a.now = func() time.Time { return now }
	return a
}

func metric(at time.Time, method, path string, status int, latency time.Duration, backend string) models.RequestMetric {
	return models.RequestMetric{
		Timestamp:    at,
		Method:       method,
		Path:         path,
		StatusCode:   status,
		ResponseTime: latency,
		Backend:      backend,
	}
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []float64{100, 150, 200, 250, 300}

	if got := percentile(sorted, 50); got != 200 {
		t.Fatalf("p50 = %v, want 200", got)
	}
	if got := percentile(sorted, 95); got != 300 {
		t.Fatalf("p95 = %v, want 300", got)
	}
	if got := percentile(sorted, 99); got != 300 {
		t.Fatalf("p99 = %v, want 300", got)
	}
	if got := percentile([]float64{42}, 95); got != 42 {
		t.Fatalf("single-value p95 = %v, want 42", got)
	}
	if got := percentile(nil, 95); got != 0 {
		t.Fatalf("empty p95 = %v, want 0", got)
	}
}

func TestSummaryEmptyWindow(t *testing.T) {
	a := newTestAggregator(testBase)

	s := a.Summary(time.Hour)
	if s.RequestCount != 0 || s.ErrorCount != 0 || s.AvgResponseMS != 0 || s.P95ResponseMS != 0 {
		t.Fatalf("empty window summary not all-zero: %+v", s)
	}
	if s.WindowSeconds != 3600 {
		t.Fatalf("WindowSeconds = %d, want 3600", s.WindowSeconds)
	}
}

func TestSummaryAggregates(t *testing.T) {
	a := newTestAggregator(testBase)

	a.Record(metric(testBase.Add(-30*time.Minute), "GET", "/api/v1/videos/:id", 200, 100*time.Millisecond, "catalog"))
	a.Record(metric(testBase.Add(-20*time.Minute), "GET", "/api/v1/videos/:id", 200, 150*time.Millisecond, "catalog"))
	a.Record(metric(testBase.Add(-15*time.Minute), "GET", "/api/v1/stream/:id", 200, 200*time.Millisecond, "playback"))
	a.Record(metric(testBase.Add(-10*time.Minute), "POST", "/api/v1/payments", 500, 250*time.Millisecond, "billing"))
	a.Record(metric(testBase.Add(-5*time.Minute), "GET", "/api/v1/search", 404, 300*time.Millisecond, "catalog"))

	s := a.Summary(time.Hour)

	if s.RequestCount != 5 {
		t.Fatalf("RequestCount = %d, want 5", s.RequestCount)
	}
	if s.ErrorCount != 2 {
		t.Fatalf("ErrorCount = %d, want 2", s.ErrorCount)
	}
	if s.ErrorRate != 0.4 {
		t.Fatalf("ErrorRate = %v, want 0.4", s.ErrorRate)
	}
	if s.AvgResponseMS != 200 {
		t.Fatalf("AvgResponseMS = %v, want 200", s.AvgResponseMS)
	}
	if s.MedianResponseMS != 200 {
		t.Fatalf("MedianResponseMS = %v, want 200", s.MedianResponseMS)
	}
	if s.P95ResponseMS != 300 {
		t.Fatalf("P95ResponseMS = %v, want 300", s.P95ResponseMS)
	}
	if s.StatusClasses.Class2xx != 3 || s.StatusClasses.Class4xx != 1 || s.StatusClasses.Class5xx != 1 {
		t.Fatalf("status classes = %+v, want 3/1/1 across 2xx/4xx/5xx", s.StatusClasses)
	}

	if len(s.Backends) != 3 {
		t.Fatalf("Backends count = %d, want 3", len(s.Backends))
	}
	// Sorted by name: billing, catalog, playback.
	if s.Backends[0].Backend != "billing" || s.Backends[1].Backend != "catalog" || s.Backends[2].Backend != "playback" {
		t.Fatalf("backend order wrong: %+v", s.Backends)
	}
	catalog := s.Backends[1]
	if catalog.RequestCount != 3 || catalog.ErrorCount != 1 {
		t.Fatalf("catalog stats = %+v, want 3 requests, 1 error", catalog)
	}
	wantAvg := (100.0 + 150.0 + 300.0) / 3
	if catalog.AvgResponseMS != wantAvg {
		t.Fatalf("catalog AvgResponseMS = %v, want %v", catalog.AvgResponseMS, wantAvg)
	}
}

func TestSummaryExcludesOutsideWindow(t *testing.T) {
	a := newTestAggregator(testBase)

	a.Record(metric(testBase.Add(-2*time.Hour), "GET", "/old", 200, 50*time.Millisecond, "catalog"))
	a.Record(metric(testBase.Add(-10*time.Minute), "GET", "/new", 200, 50*time.Millisecond, "catalog"))

	s := a.Summary(time.Hour)
	if s.RequestCount != 1 {
		t.Fatalf("RequestCount = %d, want 1 (old entry excluded)", s.RequestCount)
	}
}

func TestSlowEndpointsRanking(t *testing.T) {
	a := newTestAggregator(testBase)

	at := testBase.Add(-10 * time.Minute)
	a.Record(metric(at, "GET", "/api/v1/search", 200, 400*time.Millisecond, "catalog"))
	a.Record(metric(at, "GET", "/api/v1/search", 200, 600*time.Millisecond, "catalog"))
	a.Record(metric(at, "GET", "/api/v1/videos/:id", 200, 100*time.Millisecond, "catalog"))
	a.Record(metric(at, "POST", "/api/v1/payments", 200, 900*time.Millisecond, "billing"))

	slow := a.SlowEndpoints(time.Hour, 2)
	if len(slow) != 2 {
		t.Fatalf("len = %d, want 2", len(slow))
	}
	if slow[0].Path != "/api/v1/payments" || slow[0].AvgResponseMS != 900 {
		t.Fatalf("slow[0] = %+v, want payments at 900ms", slow[0])
	}
	if slow[1].Path != "/api/v1/search" || slow[1].AvgResponseMS != 500 || slow[1].RequestCount != 2 {
		t.Fatalf("slow[1] = %+v, want search avg 500ms over 2 requests", slow[1])
	}
}

func TestErrorDistribution(t *testing.T) {
	a := newTestAggregator(testBase)

	at := testBase.Add(-10 * time.Minute)
	a.Record(metric(at, "GET", "/api/v1/videos/:id", 200, time.Millisecond, "catalog"))
	a.Record(metric(at, "GET", "/api/v1/videos/:id", 404, time.Millisecond, "catalog"))
	a.Record(metric(at, "GET", "/api/v1/videos/:id", 404, time.Millisecond, "catalog"))
	a.Record(metric(at, "POST", "/api/v1/payments", 502, time.Millisecond, "billing"))

	dist := a.ErrorDistribution(time.Hour)
	if dist.Total != 3 {
		t.Fatalf("Total = %d, want 3", dist.Total)
	}
	if dist.ByStatus[404] != 2 || dist.ByStatus[502] != 1 {
		t.Fatalf("ByStatus = %v, want 404:2 502:1", dist.ByStatus)
	}
	if dist.ByBackend["catalog"] != 2 || dist.ByBackend["billing"] != 1 {
		t.Fatalf("ByBackend = %v, want catalog:2 billing:1", dist.ByBackend)
	}
	if len(dist.ByEndpoint) != 2 || dist.ByEndpoint[0].Count != 2 || dist.ByEndpoint[0].Path != "/api/v1/videos/:id" {
		t.Fatalf("ByEndpoint = %+v, want videos first with 2", dist.ByEndpoint)
	}
}

func TestTrafficPattern(t *testing.T) {
	// Fixed "now" at an exact bucket boundary keeps expectations simple.
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(now)

	// Two requests in the 11:10 bucket, one error in the 11:55 bucket.
	a.Record(metric(now.Add(-48*time.Minute), "GET", "/a", 200, 100*time.Millisecond, "catalog"))
	a.Record(metric(now.Add(-47*time.Minute), "GET", "/a", 200, 300*time.Millisecond, "catalog"))
	a.Record(metric(now.Add(-3*time.Minute), "GET", "/b", 500, 50*time.Millisecond, "catalog"))

	buckets := a.TrafficPattern()
	if len(buckets) != 12 {
		t.Fatalf("bucket count = %d, want 12", len(buckets))
	}
	if !buckets[0].Start.Equal(now.Add(-55 * time.Minute)) {
		t.Fatalf("first bucket start = %v, want %v", buckets[0].Start, now.Add(-55*time.Minute))
	}
	if !buckets[11].Start.Equal(now) {
		t.Fatalf("last bucket start = %v, want %v", buckets[11].Start, now)
	}

	// -48m and -47m fall in the bucket starting at -50m (index 1).
	b := buckets[1]
	if b.RequestCount != 2 || b.ErrorCount != 0 || b.AvgResponseMS != 200 {
		t.Fatalf("bucket[1] = %+v, want 2 requests avg 200ms", b)
	}
	// -3m falls in the bucket starting at -5m (index 10).
	b = buckets[10]
	if b.RequestCount != 1 || b.ErrorCount != 1 {
		t.Fatalf("bucket[10] = %+v, want 1 request 1 error", b)
	}
	// Untouched slots stay zero.
	if buckets[5].RequestCount != 0 || buckets[5].AvgResponseMS != 0 {
		t.Fatalf("bucket[5] = %+v, want zeros", buckets[5])
	}
}

func TestSummaryToleratesOutOfOrderTimestamps(t *testing.T) {
	a := newTestAggregator(testBase)

	// A slow request started long ago completes after a fast recent
	// one, so the older timestamp lands later in the history.
	a.Record(metric(testBase.Add(-time.Minute), "GET", "/fast", 200, time.Millisecond, "catalog"))
	a.Record(metric(testBase.Add(-2*time.Hour), "GET", "/slow", 200, 5*time.Second, "catalog"))

	s := a.Summary(time.Hour)
	if s.RequestCount != 1 {
		t.Fatalf("RequestCount = %d, want 1 (in-window entry appended before an older one)", s.RequestCount)
	}
}

func TestCompactToleratesOutOfOrderTimestamps(t *testing.T) {
	cfg := testStatsConfig()
	cfg.Retention = time.Hour
	a := NewAggregator(cfg)
	a.now = func() time.Time { return testBase }

	a.Record(metric(testBase.Add(-time.Minute), "GET", "/fast", 200, time.Millisecond, "catalog"))
	a.Record(metric(testBase.Add(-2*time.Hour), "GET", "/slow", 200, 5*time.Second, "catalog"))

	if removed := a.Compact(); removed != 1 {
		t.Fatalf("Compact() = %d, want 1 expired entry removed", removed)
	}
	if a.Len() != 1 {
		t.Fatalf("Len() = %d after compaction, want 1", a.Len())
	}
}

func TestRecordEnforcesCapacity(t *testing.T) {
	cfg := testStatsConfig()
	cfg.Capacity = 100
	a := NewAggregator(cfg)
	a.now = func() time.Time { return testBase }

	for i := 0; i < 150; i++ {
		a.Record(metric(testBase.Add(time.Duration(i)*time.Second), "GET", "/a", 200, time.Millisecond, "catalog"))
	}
	if a.Len() != 100 {
		t.Fatalf("Len() = %d, want 100 (capacity enforced on append)", a.Len())
	}
}

func TestCompactDropsExpiredAndEnforcesCap(t *testing.T) {
	cfg := testStatsConfig()
	cfg.Capacity = 3
	cfg.Retention = time.Hour
	a := NewAggregator(cfg)
	a.now = func() time.Time { return testBase }

	a.Record(metric(testBase.Add(-2*time.Hour), "GET", "/old", 200, time.Millisecond, "catalog"))
	a.Record(metric(testBase.Add(-50*time.Minute), "GET", "/a", 200, time.Millisecond, "catalog"))
	a.Record(metric(testBase.Add(-40*time.Minute), "GET", "/b", 200, time.Millisecond, "catalog"))

	if removed := a.Compact(); removed != 1 {
		t.Fatalf("Compact() = %d, want 1 expired entry removed", removed)
	}
	if a.Len() != 2 {
		t.Fatalf("Len() = %d after compaction, want 2", a.Len())
	}
}

func TestCompactorServeStopsOnCancel(t *testing.T) {
	a := newTestAggregator(testBase)
	c := NewCompactor(a, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
