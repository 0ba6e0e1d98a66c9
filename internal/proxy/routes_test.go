// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package proxy

import (
	"testing"

	"github.com/tomtom215/ostium/internal/config"
)

func TestTableLongestPrefixWins(t *testing.T) {
	table := NewTable([]config.RouteConfig{
		{PathPrefix: "/api/v1", Backend: "catalog"},
		{PathPrefix: "/api/v1/stream", Backend: "playback"},
		{PathPrefix: "/api/v1/stream/live", Backend: "playback-live"},
	})

	cases := []struct {
		path    string
		backend string
	}{
		{"/api/v1/videos", "catalog"},
		{"/api/v1/stream/abc", "playback"},
		{"/api/v1/stream/live/now", "playback-live"},
		{"/api/v1/stream", "playback"},
	}
	for _, tc := range cases {
		route, ok := table.Match(tc.path)
		if !ok {
			t.Fatalf("Match(%q) found no route", tc.path)
		}
		if route.Backend != tc.backend {
			t.Errorf("Match(%q) backend = %q, want %q", tc.path, route.Backend, tc.backend)
		}
	}
}

func TestTableNoMatch(t *testing.T) {
	table := NewTable([]config.RouteConfig{
		{PathPrefix: "/api/v1/videos", Backend: "catalog"},
	})

	if _, ok := table.Match("/other"); ok {
		t.Fatal("Match(/other) should find no route")
	}
	// Prefix must end at a segment boundary.
	if _, ok := table.Match("/api/v1/videos2"); ok {
		t.Fatal("Match(/api/v1/videos2) should not match the /api/v1/videos route")
	}
}

func TestRouteForLabel(t *testing.T) {
	table := NewTable([]config.RouteConfig{
		{PathPrefix: "/api/v1/videos", Backend: "catalog"},
	})

	r := newTestRequest("GET", "/api/v1/videos/42")
	if got := table.RouteFor(r); got != "/api/v1/videos" {
		t.Fatalf("RouteFor() = %q, want /api/v1/videos", got)
	}
	r = newTestRequest("GET", "/nope")
	if got := table.RouteFor(r); got != "unmatched" {
		t.Fatalf("RouteFor() = %q, want unmatched", got)
	}
}

func TestRewritePath(t *testing.T) {
	cases := []struct {
		route config.RouteConfig
		path  string
		want  string
	}{
		{config.RouteConfig{PathPrefix: "/api/v1/videos"}, "/api/v1/videos/42", "/api/v1/videos/42"},
		{config.RouteConfig{PathPrefix: "/api/v1/videos", StripPrefix: true}, "/api/v1/videos/42", "/42"},
		{config.RouteConfig{PathPrefix: "/api/v1/videos", StripPrefix: true}, "/api/v1/videos", "/"},
		{config.RouteConfig{PathPrefix: "/ext", StripPrefix: true, AddPrefix: "/internal/v2"}, "/ext/items", "/internal/v2/items"},
		{config.RouteConfig{PathPrefix: "/api", AddPrefix: "/edge"}, "/api/items", "/edge/api/items"},
	}
	for _, tc := range cases {
		if got := RewritePath(tc.route, tc.path); got != tc.want {
			t.Errorf("RewritePath(%+v, %q) = %q, want %q", tc.route, tc.path, got, tc.want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/api/v1/videos/123", "/api/v1/videos/:id"},
		{"/api/v1/videos/123/comments/456", "/api/v1/videos/:id/comments/:id"},
		{"/api/v1/videos/9f1c2a7e-44d0-4c1b-8a3f-2b9d6c1e0f55", "/api/v1/videos/:id"},
		{"/api/v1/videos/507f1f77bcf86cd799439011", "/api/v1/videos/:id"},
		{"/api/v1/search", "/api/v1/search"},
		{"/api/v1/videos/abc123", "/api/v1/videos/abc123"},
		{"/", "/"},
		{"", ""},
		// "v1" is not numeric; short hex like "beef" stays.
		{"/api/v1/beef", "/api/v1/beef"},
	}
	for _, tc := range cases {
		if got := NormalizePath(tc.in); got != tc.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
