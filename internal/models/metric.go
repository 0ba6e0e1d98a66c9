// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package models

import (
	"time"
)

// RequestMetric is the immutable record emitted once per completed
// request, success or failure. The proxy appends one after every call;
// the aggregator owns retention and pruning. Fields are never mutated
// after emission.
//
// Path holds the normalized form: path parameters (numeric ids, UUIDs,
// long hex tokens) are replaced by a ":id" placeholder so that
// /api/v1/videos/123 and /api/v1/videos/456 aggregate together.
type RequestMetric struct {
	Timestamp    time.Time
	Method       string
	Path         string
	StatusCode   int
	ResponseTime time.Duration
	Backend      string // backend service name, empty when not proxied
	Caller       string // authenticated caller id, empty when anonymous
}

// IsError reports whether the request ended with an error status.
func (m RequestMetric) IsError() bool {
	return m.StatusCode >= 400
}

// StatusClass returns the status class bucket ("2xx", "4xx", ...) used
// by the class histogram and the access event subject hierarchy.
func (m RequestMetric) StatusClass() string {
	switch {
	case m.StatusCode >= 500:
		return "5xx"
	case m.StatusCode >= 400:
		return "4xx"
	case m.StatusCode >= 300:
		return "3xx"
	case m.StatusCode >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
