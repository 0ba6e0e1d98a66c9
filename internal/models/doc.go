// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

/*
Package models defines data structures shared across the Ostium gateway.

This package contains the caller-facing response envelope, the request
metric record emitted for every proxied call, the aggregate statistics
types served by the administrative API, and the request/response bodies
of the administrative endpoints. It serves as the single source of truth
for data structure definitions; packages that compute these values
(internal/stats, internal/breaker, internal/upstream) import this package,
never the reverse.

Model Categories:

 1. Envelope Models:
    - APIResponse: Standard response wrapper for gateway-originated bodies
    - APIError: Structured error details inside the envelope

 2. Metric Models:
    - RequestMetric: Immutable per-request record consumed by the aggregator
    - StatsSummary, BackendStats, StatusClassCounts: Windowed aggregates
    - SlowEndpoint, ErrorDistribution, TrafficBucket, HealthScore
    - MetricsSnapshot: Machine-readable export of everything above

 3. Administrative Models:
    - BreakerStatus, BreakerStateRequest: Circuit-breaker inspection/override
    - PoolStatus, EndpointStatus: Backend pool inspection
    - AddEndpointRequest, EndpointWeightRequest: Pool mutation bodies
    - RateLimitPolicyStatus: Per-policy quota usage

JSON conventions: the envelope uses the exact key names of the public API
contract (success, data, error, timestamp, requestId); administrative and
metric payloads use snake_case keys.
*/
package models
