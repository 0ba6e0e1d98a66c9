// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package balancer selects backend endpoints and executes upstream
// calls with bounded retry.
//
// Four strategies are supported: round_robin (stable cyclic order over
// the current healthy set), least_connections (fewest in-flight calls,
// ties by registry order), weighted (cumulative-weight sampling), and
// random. Execute wraps selection in a retry loop with exponential
// backoff, marking endpoints unhealthy on connection-class failures so
// subsequent selections avoid them; the health prober brings them back
// once they recover.
package balancer
