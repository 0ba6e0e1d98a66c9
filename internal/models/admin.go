// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package models

import (
	"time"
)

// BreakerStatus describes one backend's circuit breaker for the
// administrative API.
//
// State values: "closed", "open", "half_open".
type BreakerStatus struct {
	Backend       string     `json:"backend"`
	State         string     `json:"state"`
	FailureCount  int        `json:"failure_count"`
	SuccessCount  int        `json:"success_count"`
	UptimePercent float64    `json:"uptime_percent"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	LastChange    time.Time  `json:"last_change"`
}

// BreakerStateRequest is the body for forcing a breaker state.
//
// Action values:
//   - "force_open": reject all calls until forced closed
//   - "force_close": resume normal operation with counters reset
type BreakerStateRequest struct {
	Action string `json:"action" validate:"required,oneof=force_open force_close"`
}

// PoolStatus describes one backend's endpoint pool and balancing
// configuration for the administrative API.
type PoolStatus struct {
	Backend           string           `json:"backend"`
	Strategy          string           `json:"strategy"`
	HealthyCount      int              `json:"healthy_count"`
	EndpointCount     int              `json:"endpoint_count"`
	ActiveConnections int64            `json:"active_connections"`
	AvgProbeLatencyMS float64          `json:"avg_probe_latency_ms"`
	TotalRequests     uint64           `json:"total_requests"`
	TotalFailures     uint64           `json:"total_failures"`
	RetriesIssued     uint64           `json:"retries_issued"`
	Endpoints         []EndpointStatus `json:"endpoints"`
}

// EndpointStatus describes one endpoint within a pool.
//
// Status values: "unknown", "healthy", "unhealthy".
type EndpointStatus struct {
	ID                 string     `json:"id"`
	Address            string     `json:"address"`
	Weight             int        `json:"weight"`
	Status             string     `json:"status"`
	CurrentConnections int64      `json:"current_connections"`
	LastResponseMS     float64    `json:"last_response_ms"`
	LastChecked        *time.Time `json:"last_checked,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
}

// AddEndpointRequest is the body for registering an endpoint with a pool.
// ID is optional; a UUID is assigned when omitted. Weight defaults to 1.
type AddEndpointRequest struct {
	ID      string `json:"id" validate:"omitempty,max=128"`
	Address string `json:"address" validate:"required,url"`
	Weight  int    `json:"weight" validate:"omitempty,min=1,max=1000"`
}

// EndpointWeightRequest is the body for adjusting an endpoint's weight.
type EndpointWeightRequest struct {
	Weight int `json:"weight" validate:"required,min=1,max=1000"`
}

// RateLimitPolicyStatus describes one rate-limit policy's configuration
// and current usage for the administrative API.
type RateLimitPolicyStatus struct {
	Policy        string `json:"policy"`
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"window_seconds"`
	ActiveKeys    int    `json:"active_keys"`
	Rejections    uint64 `json:"rejections"`
}
