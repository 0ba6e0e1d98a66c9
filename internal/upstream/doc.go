// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package upstream holds the instance registry and the health prober.
//
// A Pool is the single source of truth for one backend service's
// endpoints: registration order, relative weights, live health, and
// in-flight connection counts. The Prober refreshes endpoint health on
// a fixed interval, independent of request handling; the balancer
// consumes the registry and additionally marks endpoints unhealthy
// when a proxied call hits a connection-class failure.
package upstream
