// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package models

import (
	"time"
)

// StatsSummary is the windowed aggregate over recent request metrics.
// All latency values are in milliseconds. Percentiles use the
// nearest-rank method; with no requests in the window every numeric
// field is zero.
type StatsSummary struct {
	WindowSeconds    int               `json:"window_seconds"`
	RequestCount     int               `json:"request_count"`
	ErrorCount       int               `json:"error_count"`
	ErrorRate        float64           `json:"error_rate"`
	AvgResponseMS    float64           `json:"avg_response_ms"`
	MedianResponseMS float64           `json:"median_response_ms"`
	P95ResponseMS    float64           `json:"p95_response_ms"`
	P99ResponseMS    float64           `json:"p99_response_ms"`
	StatusClasses    StatusClassCounts `json:"status_classes"`
	Backends         []BackendStats    `json:"backends"`
}

// StatusClassCounts is the histogram of response status classes.
type StatusClassCounts struct {
	Class1xx int `json:"1xx"`
	Class2xx int `json:"2xx"`
	Class3xx int `json:"3xx"`
	Class4xx int `json:"4xx"`
	Class5xx int `json:"5xx"`
}

// BackendStats is the per-backend breakdown inside a StatsSummary.
// Results are sorted by backend name for stable output.
type BackendStats struct {
	Backend       string  `json:"backend"`
	RequestCount  int     `json:"request_count"`
	ErrorCount    int     `json:"error_count"`
	AvgResponseMS float64 `json:"avg_response_ms"`
}

// SlowEndpoint is one entry in the slow-endpoint ranking: requests
// grouped by (method, normalized path), ordered by average latency
// descending.
type SlowEndpoint struct {
	Method        string  `json:"method"`
	Path          string  `json:"path"`
	RequestCount  int     `json:"request_count"`
	AvgResponseMS float64 `json:"avg_response_ms"`
}

// ErrorDistribution groups error responses (status >= 400) by status
// code, by endpoint, and by backend within the window.
type ErrorDistribution struct {
	Total      int              `json:"total"`
	ByStatus   map[int]int      `json:"by_status"`
	ByEndpoint []EndpointErrors `json:"by_endpoint"`
	ByBackend  map[string]int   `json:"by_backend"`
}

// EndpointErrors is one (method, normalized path) group in the error
// distribution, ordered by count descending.
type EndpointErrors struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Count  int    `json:"count"`
}

// TrafficBucket is one fixed five-minute slot of the traffic pattern.
// Buckets are aligned to wall-clock five-minute boundaries; twelve
// buckets cover the last hour, oldest first. Empty slots are emitted
// with zero counts so charts stay gap-free.
type TrafficBucket struct {
	Start         time.Time `json:"start"`
	RequestCount  int       `json:"request_count"`
	ErrorCount    int       `json:"error_count"`
	AvgResponseMS float64   `json:"avg_response_ms"`
}

// HealthScore is the composite 0-100 health number with its factor
// breakdown. Score is the weighted sum of the four factor impacts,
// rounded to the nearest integer. An empty window scores 100.
type HealthScore struct {
	Score   int           `json:"score"`
	Factors HealthFactors `json:"factors"`
}

// HealthFactors breaks the health score into its weighted inputs.
type HealthFactors struct {
	ErrorRate    HealthFactor `json:"error_rate"`
	P95Latency   HealthFactor `json:"p95_latency"`
	Throughput   HealthFactor `json:"throughput"`
	Availability HealthFactor `json:"availability"`
}

// HealthFactor is a single scored input: the observed value, its 0-100
// impact after normalization, and the weight applied to that impact.
type HealthFactor struct {
	Value  float64 `json:"value"`
	Impact float64 `json:"impact"`
	Weight int     `json:"weight"`
}

// MetricsSnapshot is the machine-readable export of the full
// administrative view, suitable for scraping or offline analysis.
type MetricsSnapshot struct {
	GeneratedAt   time.Time               `json:"generated_at"`
	Summary       StatsSummary            `json:"summary"`
	SlowEndpoints []SlowEndpoint          `json:"slow_endpoints"`
	Errors        ErrorDistribution       `json:"errors"`
	Traffic       []TrafficBucket         `json:"traffic"`
	Health        HealthScore             `json:"health"`
	Breakers      []BreakerStatus         `json:"breakers"`
	Pools         []PoolStatus            `json:"pools"`
	RateLimits    []RateLimitPolicyStatus `json:"rate_limits"`
}
