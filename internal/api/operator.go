// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/tomtom215/ostium/internal/auth"
	"github.com/tomtom215/ostium/internal/gwerr"
	"github.com/tomtom215/ostium/internal/metrics"
)

// OperatorAuth gates a subtree behind the static admin credential.
// Failed attempts spend tokens in the failure limiter; an IP that
// exhausts its budget is rejected before the credential is even
// checked, which keeps bcrypt off the hot path during a guessing run.
func OperatorAuth(op *auth.Operator, limiter *auth.FailureLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)
			if limiter != nil && limiter.Locked(ip) {
				metrics.RecordAuthFailure("operator_lockout")
				WriteError(w, r, gwerr.RateLimit("too many failed authentication attempts"))
				return
			}

			if err := op.ValidateHeader(r.Header.Get("Authorization")); err != nil {
				if limiter != nil {
					limiter.RecordFailure(ip)
				}
				metrics.RecordAuthFailure("operator_credentials")
				w.Header().Set("WWW-Authenticate", op.WWWAuthenticate())
				WriteError(w, r, gwerr.Authentication("operator credentials required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// remoteIP extracts the peer address without consulting forwarding
// headers. The admin surface trusts only the socket peer; X-Forwarded-
// For is spoofable and must not influence lockout bookkeeping.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
