// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/ostium/internal/auth"
	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/middleware"
	"github.com/tomtom215/ostium/internal/upstream"
)

// RouterOptions collects everything the top-level router mounts. The
// proxy and the live feed arrive as plain handlers so this package
// never depends on their internals.
type RouterOptions struct {
	// Proxy handles every path that is not a gateway-owned surface.
	Proxy http.Handler

	// RouteFor resolves a request to its matched route prefix for the
	// Prometheus route label.
	RouteFor func(r *http.Request) string

	// Admin is nil when the admin surface is disabled.
	Admin *Admin

	// Live upgrades /admin/v1/live to the websocket feed. Ignored
	// when Admin is nil.
	Live http.Handler

	Operator       *auth.Operator
	FailureLimiter *auth.FailureLimiter

	AdminConfig config.AdminConfig

	// Pools feed the readiness view in /healthz.
	Pools map[string]*upstream.Pool
}

// HealthStatus is the /healthz response body.
type HealthStatus struct {
	Status        string                `json:"status"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	Pools         map[string]PoolHealth `json:"pools,omitempty"`
}

// PoolHealth is the per-backend readiness line in /healthz.
type PoolHealth struct {
	Healthy int `json:"healthy"`
	Total   int `json:"total"`
}

// NewRouter assembles the gateway's HTTP surface: /healthz and
// /metrics unauthenticated, /admin/v1 behind the operator credential,
// and everything else handed to the proxy.
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Gateway)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Prometheus(opts.RouteFor))

	startTime := time.Now()
	r.Get("/healthz", healthzHandler(opts.Pools, startTime))
	r.Handle("/metrics", promhttp.Handler())

	if opts.Admin != nil {
		r.Route("/admin/v1", func(r chi.Router) {
			if len(opts.AdminConfig.CORSOrigins) > 0 {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins:   opts.AdminConfig.CORSOrigins,
					AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
					AllowedHeaders:   []string{"Content-Type", "Authorization"},
					AllowCredentials: true,
					MaxAge:           86400,
				}))
			}
			if opts.AdminConfig.EdgeRateLimit > 0 {
				r.Use(httprate.LimitByIP(opts.AdminConfig.EdgeRateLimit, time.Minute))
			}
			r.Use(OperatorAuth(opts.Operator, opts.FailureLimiter))

			opts.Admin.Routes(r)
			if opts.Live != nil {
				r.Handle("/live", opts.Live)
			}
		})
	}

	// Everything else is proxied traffic. The proxy owns route
	// matching, so a catch-all is enough here.
	r.NotFound(opts.Proxy.ServeHTTP)
	r.MethodNotAllowed(opts.Proxy.ServeHTTP)

	return r
}

// healthzHandler reports liveness plus per-pool endpoint readiness.
// The status degrades when any pool has no healthy endpoint, which is
// the condition that turns proxied calls into 503s.
func healthzHandler(pools map[string]*upstream.Pool, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:        "ok",
			UptimeSeconds: time.Since(startTime).Seconds(),
		}
		if len(pools) > 0 {
			status.Pools = make(map[string]PoolHealth, len(pools))
			for backend, p := range pools {
				ph := PoolHealth{Healthy: len(p.Healthy()), Total: p.Len()}
				status.Pools[backend] = ph
				if ph.Healthy == 0 {
					status.Status = "degraded"
				}
			}
		}
		WriteSuccess(w, r, status)
	}
}
