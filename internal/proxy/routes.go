// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package proxy is the gateway data path: route matching, caller
// identity, tier and quota enforcement, and the resilient forward to
// a backend pool through circuit breaker and load balancer.
package proxy

import (
	"net/http"
	"sort"
	"strings"

	"github.com/tomtom215/ostium/internal/config"
)

// Table matches inbound paths against the static route set. Routes
// are immutable after construction; the longest matching prefix wins.
type Table struct {
	// routes sorted by prefix length descending, so the first match
	// is the longest.
	routes []config.RouteConfig
}

// NewTable builds the match table from the configured routes.
func NewTable(routes []config.RouteConfig) *Table {
	sorted := make([]config.RouteConfig, len(routes))
	copy(sorted, routes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].PathPrefix) > len(sorted[j].PathPrefix)
	})
	return &Table{routes: sorted}
}

// Match returns the route for the path, longest prefix first.
func (t *Table) Match(path string) (config.RouteConfig, bool) {
	for _, route := range t.routes {
		if matchesPrefix(path, route.PathPrefix) {
			return route, true
		}
	}
	return config.RouteConfig{}, false
}

// matchesPrefix reports whether path falls under prefix at a segment
// boundary: /api/v1/video must not match a /api/v1/videos route.
func matchesPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	return strings.HasSuffix(prefix, "/") || path[len(prefix)] == '/'
}

// RouteFor returns the matched route prefix for a request, used as
// the bounded-cardinality metrics label. Unmatched paths collapse to
// a single label value.
func (t *Table) RouteFor(r *http.Request) string {
	if route, ok := t.Match(r.URL.Path); ok {
		return route.PathPrefix
	}
	return "unmatched"
}

// RewritePath applies the route's prefix rules to an inbound path.
func RewritePath(route config.RouteConfig, path string) string {
	rewritten := path
	if route.StripPrefix {
		rewritten = strings.TrimPrefix(rewritten, strings.TrimSuffix(route.PathPrefix, "/"))
	}
	if route.AddPrefix != "" {
		rewritten = strings.TrimSuffix(route.AddPrefix, "/") + rewritten
	}
	if rewritten == "" {
		rewritten = "/"
	}
	if !strings.HasPrefix(rewritten, "/") {
		rewritten = "/" + rewritten
	}
	return rewritten
}
