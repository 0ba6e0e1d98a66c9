// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package proxy

import (
	"net"
	"net/http"
	"strings"
)

// hopByHopHeaders are connection-scoped per RFC 9110 §7.6.1 and must
// not be forwarded in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// outboundHeaders clones the inbound headers minus hop-by-hop fields
// and anything the Connection header itself names.
func outboundHeaders(h http.Header) http.Header {
	out := h.Clone()

	for _, name := range strings.Split(h.Get("Connection"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			out.Del(name)
		}
	}
	for _, name := range hopByHopHeaders {
		out.Del(name)
	}
	// The caller's bearer token is gateway-facing; backends trust the
	// injected identity headers instead.
	out.Del("Authorization")
	return out
}

// filterResponseHeaders copies upstream response headers onto the
// edge response, dropping hop-by-hop fields.
func filterResponseHeaders(dst http.ResponseWriter, src http.Header) {
	for key, values := range src {
		if isHopByHop(key) {
			continue
		}
		for _, v := range values {
			dst.Header().Add(key, v)
		}
	}
}

func isHopByHop(key string) bool {
	for _, name := range hopByHopHeaders {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// clientIP extracts the caller address: the first X-Forwarded-For hop
// when present, otherwise the connection peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
