// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// histogramSampleCount extracts the observation count from a histogram
// child.
func histogramSampleCount(t *testing.T, vec *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	obs, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram child: %v", err)
	}
	var m io_prometheus_client.Metric
	if err := obs.(prometheus.Histogram).Write(&m); err != nil {
		t.Fatalf("writing metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// TestRecordRequest tests edge request metric recording
func TestRecordRequest(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		route    string
		status   int
		duration time.Duration
	}{
		{
			name:     "successful GET",
			method:   "GET",
			route:    "/api/v1/catalog",
			status:   200,
			duration: 15 * time.Millisecond,
		},
		{
			name:     "rate limited POST",
			method:   "POST",
			route:    "/api/v1/auth",
			status:   429,
			duration: 1 * time.Millisecond,
		},
		{
			name:     "upstream failure",
			method:   "GET",
			route:    "/api/v1/playback",
			status:   502,
			duration: 3 * time.Second,
		},
		{
			name:     "sub-millisecond health check",
			method:   "GET",
			route:    "/healthz",
			status:   200,
			duration: 200 * time.Microsecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := histogramSampleCount(t, RequestDuration, tt.method, tt.route)
			RecordRequest(tt.method, tt.route, tt.status, tt.duration)
			after := histogramSampleCount(t, RequestDuration, tt.method, tt.route)
			if after != before+1 {
				t.Errorf("duration sample count = %d, want %d", after, before+1)
			}
		})
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(ActiveRequests)

	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(ActiveRequests); got != before+2 {
		t.Errorf("ActiveRequests = %v, want %v", got, before+2)
	}

	TrackActiveRequest(false)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(ActiveRequests); got != before {
		t.Errorf("ActiveRequests = %v, want %v after balanced inc/dec", got, before)
	}
}

func TestRecordUpstreamAttempt(t *testing.T) {
	outcomes := []string{"success", "error_status", "transport_error", "timeout"}
	for _, outcome := range outcomes {
		RecordUpstreamAttempt("catalog", outcome, 25*time.Millisecond)
	}

	got := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("catalog", "success"))
	if got < 1 {
		t.Errorf("success counter = %v, want >= 1", got)
	}
}

func TestRecordHealthProbe(t *testing.T) {
	RecordHealthProbe("playback", true, 5*time.Millisecond)
	RecordHealthProbe("playback", false, 2*time.Second)

	healthy := testutil.ToFloat64(HealthProbesTotal.WithLabelValues("playback", "healthy"))
	unhealthy := testutil.ToFloat64(HealthProbesTotal.WithLabelValues("playback", "unhealthy"))
	if healthy < 1 || unhealthy < 1 {
		t.Errorf("probe counters = %v healthy / %v unhealthy, want both >= 1", healthy, unhealthy)
	}
}

func TestUpdatePoolEndpoints(t *testing.T) {
	UpdatePoolEndpoints("billing", 3, 1, 0)

	tests := []struct {
		status string
		want   float64
	}{
		{"healthy", 3},
		{"unhealthy", 1},
		{"unknown", 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(PoolEndpoints.WithLabelValues("billing", tt.status))
		if got != tt.want {
			t.Errorf("PoolEndpoints[%s] = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestBreakerMetrics(t *testing.T) {
	backend := "social"

	// 0=closed, 1=half_open, 2=open
	SetBreakerState(backend, 0)
	SetBreakerState(backend, 2)
	SetBreakerState(backend, 1)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues(backend)); got != 1 {
		t.Errorf("CircuitBreakerState = %v, want 1 (half_open)", got)
	}

	RecordBreakerResult(backend, "success")
	RecordBreakerResult(backend, "failure")
	RecordBreakerResult(backend, "rejected")

	RecordBreakerTransition(backend, "closed", "open")
	RecordBreakerTransition(backend, "open", "half_open")
	RecordBreakerTransition(backend, "half_open", "closed")

	got := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues(backend, "closed", "open"))
	if got < 1 {
		t.Errorf("transition counter = %v, want >= 1", got)
	}
}

func TestRecordRateLimitCheck(t *testing.T) {
	rejectionsBefore := testutil.ToFloat64(RateLimitRejections.WithLabelValues("search"))

	RecordRateLimitCheck("search", true)
	RecordRateLimitCheck("search", true)
	RecordRateLimitCheck("search", false)

	rejections := testutil.ToFloat64(RateLimitRejections.WithLabelValues("search"))
	if rejections != rejectionsBefore+1 {
		t.Errorf("RateLimitRejections = %v, want %v", rejections, rejectionsBefore+1)
	}

	allowed := testutil.ToFloat64(RateLimitChecks.WithLabelValues("search", "true"))
	if allowed < 2 {
		t.Errorf("allowed checks = %v, want >= 2", allowed)
	}
}

func TestCacheMetrics(t *testing.T) {
	RecordCacheHit("plans")
	RecordCacheMiss("plans")
	RecordCacheEviction("plans")
	SetCacheEntries("plans", 42)

	if got := testutil.ToFloat64(CacheEntries.WithLabelValues("plans")); got != 42 {
		t.Errorf("CacheEntries = %v, want 42", got)
	}
}

func TestRecordEventPublish(t *testing.T) {
	publishedBefore := testutil.ToFloat64(EventsPublished)
	errorsBefore := testutil.ToFloat64(EventsPublishErrors)

	RecordEventPublish(nil)
	RecordEventPublish(errTest)

	if got := testutil.ToFloat64(EventsPublished); got != publishedBefore+1 {
		t.Errorf("EventsPublished = %v, want %v", got, publishedBefore+1)
	}
	if got := testutil.ToFloat64(EventsPublishErrors); got != errorsBefore+1 {
		t.Errorf("EventsPublishErrors = %v, want %v", got, errorsBefore+1)
	}
}

func TestWALMetrics(t *testing.T) {
	UpdateWALPending(7)
	if got := testutil.ToFloat64(WALPending); got != 7 {
		t.Errorf("WALPending = %v, want 7", got)
	}

	RecordWALWrite()
	RecordWALReplay()
}

func TestConcurrentRecording(t *testing.T) {
	// Helpers are called from request goroutines, probe goroutines, and
	// the supervisor at once; the client library must absorb that.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordRequest("GET", "/api/v1/catalog", 200, time.Millisecond)
				RecordUpstreamAttempt("catalog", "success", time.Millisecond)
				TrackActiveRequest(n%2 == 0)
				RecordRateLimitCheck("default", j%5 != 0)
			}
		}(i)
	}
	wg.Wait()
}

// TestMetricsLint runs the Prometheus linter over everything registered
// by this package to catch naming and help-text mistakes.
func TestMetricsLint(t *testing.T) {
	// Touch one child per vector so the gatherer has something to emit.
	RecordRequest("GET", "/api/v1/catalog", 200, time.Millisecond)
	SetBuildInfo("test", "go1.24")
	UpdateUptime(time.Now().Add(-time.Minute))

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("GatherAndLint() error: %v", err)
	}
	for _, p := range problems {
		t.Errorf("lint problem in %s: %s", p.Metric, p.Text)
	}
}

var errTest = &testError{}

type testError struct{}

func (e *testError) Error() string { return "publish failed: nats: timeout" }
