// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the full request path through the gateway, from the
edge listener down to individual upstream call attempts, plus the supporting
subsystems around it.

# Overview

The package provides metrics for:
  - Edge request latency and throughput
  - Upstream call attempts, outcomes, and retries per backend pool
  - Endpoint health probes and pool composition
  - Circuit breaker state, results, and transitions
  - Rate limiter decisions per policy
  - Plan cache efficiency
  - In-memory metric history size and compaction
  - Access event pipeline (NATS publishes, write-ahead log depth)
  - WebSocket live feed connections
  - Operator authentication failures

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:6784/metrics

# Naming

All metrics carry the ostium_ prefix. Label conventions:
  - backend: logical backend service name (catalog, playback, billing, ...)
  - route: matched route prefix, not the raw request path
  - policy: rate limit policy name (default, auth, search, payment, plan)
  - outcome: upstream attempt result (success, error_status, transport_error, timeout)
  - result: breaker call result (success, failure, rejected)

Raw request paths never become label values; only the bounded route set
does. This keeps cardinality proportional to configuration, not traffic.

# Usage Example

	start := time.Now()
	resp, err := pool.Do(ctx, req)
	metrics.RecordUpstreamAttempt("catalog", outcome(resp, err), time.Since(start))

State gauges are updated by their owning components: the prober updates
pool gauges after each cycle, breakers update their state gauge on every
transition, and the supervisor refreshes uptime once a minute.
*/
package metrics
