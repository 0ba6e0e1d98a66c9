// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the gateway data path and its
// supporting subsystems:
// - Edge request latency and throughput
// - Upstream calls, retries, and health probes per backend pool
// - Circuit breaker state and transitions
// - Rate limiter decisions
// - Plan cache efficiency
// - Access event pipeline (NATS) and write-ahead log depth
// - WebSocket live feed connections

var (
	// Edge Metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_requests_total",
			Help: "Total number of requests handled by the gateway",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ostium_request_duration_seconds",
			Help:    "Gateway request duration in seconds, including retries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ostium_active_requests",
			Help: "Current number of in-flight requests",
		},
	)

	// Upstream Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_upstream_requests_total",
			Help: "Total number of upstream call attempts",
		},
		[]string{"backend", "outcome"}, // "success", "error_status", "transport_error", "timeout"
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ostium_upstream_latency_seconds",
			Help:    "Latency of individual upstream call attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	UpstreamRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_upstream_retries_total",
			Help: "Total number of retry attempts against backend pools",
		},
		[]string{"backend"},
	)

	// Health Probe Metrics
	HealthProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_health_probes_total",
			Help: "Total number of endpoint health probes",
		},
		[]string{"backend", "result"}, // "healthy", "unhealthy"
	)

	HealthProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ostium_health_probe_duration_seconds",
			Help:    "Duration of endpoint health probes in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"backend"},
	)

	PoolEndpoints = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ostium_pool_endpoints",
			Help: "Current number of endpoints per pool by health status",
		},
		[]string{"backend", "status"}, // "healthy", "unhealthy", "unknown"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ostium_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"backend"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_circuit_breaker_requests_total",
			Help: "Total number of calls through circuit breakers",
		},
		[]string{"backend", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"backend", "from_state", "to_state"},
	)

	// Rate Limit Metrics
	RateLimitChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_rate_limit_checks_total",
			Help: "Total number of rate limit checks",
		},
		[]string{"policy", "allowed"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_rate_limit_rejections_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"policy"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"}, // "plans"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_cache_evictions_total",
			Help: "Total number of cache evictions (capacity or TTL expiry)",
		},
		[]string{"cache"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ostium_cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache"},
	)

	// Metrics History
	MetricsHistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ostium_metrics_history_size",
			Help: "Current number of request metrics held in memory",
		},
	)

	MetricsCompactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ostium_metrics_compactions_total",
			Help: "Total number of metric history compaction runs",
		},
	)

	// Access Event Pipeline Metrics
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ostium_events_published_total",
			Help: "Total number of access events published to NATS",
		},
	)

	EventsPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ostium_events_publish_errors_total",
			Help: "Total number of access event publish failures",
		},
	)

	WALPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ostium_wal_pending",
			Help: "Current number of unconfirmed entries in the write-ahead log",
		},
	)

	WALWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ostium_wal_writes_total",
			Help: "Total number of entries written to the write-ahead log",
		},
	)

	WALReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ostium_wal_replays_total",
			Help: "Total number of write-ahead log entries republished after failure",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ostium_websocket_connections",
			Help: "Current number of active live feed connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ostium_websocket_messages_sent_total",
			Help: "Total number of live feed messages sent",
		},
	)

	// Operator Auth Metrics
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostium_auth_failures_total",
			Help: "Total number of authentication failures",
		},
		[]string{"reason"}, // "missing_token", "invalid_token", "expired_token", "bad_credentials", "locked_out"
	)

	// System Metrics
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ostium_build_info",
			Help: "Gateway version and build information",
		},
		[]string{"version", "go_version"},
	)

	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ostium_uptime_seconds",
			Help: "Gateway uptime in seconds",
		},
	)
)

// RecordRequest records one completed edge request.
func RecordRequest(method, route string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		ActiveRequests.Inc()
	} else {
		ActiveRequests.Dec()
	}
}

// RecordUpstreamAttempt records one upstream call attempt and its outcome.
func RecordUpstreamAttempt(backend, outcome string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(backend, outcome).Inc()
	UpstreamLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordUpstreamRetry records a retry against a backend pool.
func RecordUpstreamRetry(backend string) {
	UpstreamRetriesTotal.WithLabelValues(backend).Inc()
}

// RecordHealthProbe records one endpoint health probe.
func RecordHealthProbe(backend string, healthy bool, duration time.Duration) {
	result := "healthy"
	if !healthy {
		result = "unhealthy"
	}
	HealthProbesTotal.WithLabelValues(backend, result).Inc()
	HealthProbeDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// UpdatePoolEndpoints updates the per-pool endpoint gauges after a probe
// cycle or a pool mutation.
func UpdatePoolEndpoints(backend string, healthy, unhealthy, unknown int) {
	PoolEndpoints.WithLabelValues(backend, "healthy").Set(float64(healthy))
	PoolEndpoints.WithLabelValues(backend, "unhealthy").Set(float64(unhealthy))
	PoolEndpoints.WithLabelValues(backend, "unknown").Set(float64(unknown))
}

// SetBreakerState updates a breaker's state gauge.
// Encoding: 0=closed, 1=half_open, 2=open.
func SetBreakerState(backend string, state float64) {
	CircuitBreakerState.WithLabelValues(backend).Set(state)
}

// RecordBreakerResult records the outcome of one call through a breaker.
func RecordBreakerResult(backend, result string) {
	CircuitBreakerRequests.WithLabelValues(backend, result).Inc()
}

// RecordBreakerTransition records a breaker state transition.
func RecordBreakerTransition(backend, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(backend, from, to).Inc()
}

// RecordRateLimitCheck records one rate limit decision.
func RecordRateLimitCheck(policy string, allowed bool) {
	allowedStr := "true"
	if !allowed {
		allowedStr = "false"
		RateLimitRejections.WithLabelValues(policy).Inc()
	}
	RateLimitChecks.WithLabelValues(policy, allowedStr).Inc()
}

// RecordCacheHit records a cache hit for the named cache.
func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss for the named cache.
func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

// RecordCacheEviction records an eviction for the named cache.
func RecordCacheEviction(cache string) {
	CacheEvictions.WithLabelValues(cache).Inc()
}

// SetCacheEntries updates the entry-count gauge for the named cache.
func SetCacheEntries(cache string, entries int) {
	CacheEntries.WithLabelValues(cache).Set(float64(entries))
}

// UpdateMetricsHistory records the history size after a compaction run.
func UpdateMetricsHistory(size int, compacted bool) {
	MetricsHistorySize.Set(float64(size))
	if compacted {
		MetricsCompactions.Inc()
	}
}

// RecordEventPublish records an access event publish and its outcome.
func RecordEventPublish(err error) {
	if err != nil {
		EventsPublishErrors.Inc()
		return
	}
	EventsPublished.Inc()
}

// UpdateWALPending updates the unconfirmed write-ahead log entry gauge.
func UpdateWALPending(pending int64) {
	WALPending.Set(float64(pending))
}

// RecordWALWrite records an entry written to the write-ahead log.
func RecordWALWrite() {
	WALWrites.Inc()
}

// RecordWALReplay records an entry republished from the write-ahead log.
func RecordWALReplay() {
	WALReplays.Inc()
}

// TrackWSConnection adjusts the live feed connection gauge.
func TrackWSConnection(inc bool) {
	if inc {
		WSConnections.Inc()
	} else {
		WSConnections.Dec()
	}
}

// RecordWSMessageSent records one live feed message delivery.
func RecordWSMessageSent() {
	WSMessagesSent.Inc()
}

// RecordAuthFailure records an authentication failure by reason.
func RecordAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

// SetBuildInfo publishes version information as a constant gauge.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// UpdateUptime refreshes the uptime gauge from the process start time.
func UpdateUptime(start time.Time) {
	Uptime.Set(time.Since(start).Seconds())
}
