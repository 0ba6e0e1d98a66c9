// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package proxy

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/ostium/internal/api"
	"github.com/tomtom215/ostium/internal/auth"
	"github.com/tomtom215/ostium/internal/authz"
	"github.com/tomtom215/ostium/internal/balancer"
	"github.com/tomtom215/ostium/internal/breaker"
	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/gwerr"
	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/middleware"
	"github.com/tomtom215/ostium/internal/models"
	"github.com/tomtom215/ostium/internal/plans"
	"github.com/tomtom215/ostium/internal/ratelimit"
	"github.com/tomtom215/ostium/internal/stats"
)

// maxRequestBody bounds buffered inbound bodies (32 MiB), matching
// the upstream response bound.
const maxRequestBody = 32 << 20

// Proxy is the data-path handler. Each request walks: route match,
// identity, tier gate, quota, then the forward through the backend's
// circuit breaker and load balancer. Exactly one RequestMetric is
// recorded per request, success or failure.
type Proxy struct {
	table     *Table
	balancers map[string]*balancer.Balancer
	breakers  *breaker.Manager
	limiter   *ratelimit.Limiter
	verifier  *auth.Verifier
	gate      *authz.Gate
	resolver  plans.Resolver
	stats     *stats.Aggregator
	cfg       *config.Config

	// emit, when set, receives the completed request record for the
	// access event pipeline. It must not block.
	emit func(models.RequestMetric, string, string, string)

	now func() time.Time
}

// Options carries the collaborators the proxy forwards through.
// Verifier may be nil when no route requires authentication.
type Options struct {
	Table     *Table
	Balancers map[string]*balancer.Balancer
	Breakers  *breaker.Manager
	Limiter   *ratelimit.Limiter
	Verifier  *auth.Verifier
	Gate      *authz.Gate
	Resolver  plans.Resolver
	Stats     *stats.Aggregator
	Config    *config.Config

	// Emit receives (metric, plan, clientIP, requestID) after each
	// request.
	Emit func(models.RequestMetric, string, string, string)
}

// New assembles the data-path handler.
func New(opts Options) *Proxy {
	return &Proxy{
		table:     opts.Table,
		balancers: opts.Balancers,
		breakers:  opts.Breakers,
		limiter:   opts.Limiter,
		verifier:  opts.Verifier,
		gate:      opts.Gate,
		resolver:  opts.Resolver,
		stats:     opts.Stats,
		cfg:       opts.Config,
		emit:      opts.Emit,
		now:       time.Now,
	}
}

// RouteFor exposes the table's metrics label resolver.
func (p *Proxy) RouteFor(r *http.Request) string {
	return p.table.RouteFor(r)
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := p.now()
	sw := middleware.NewStatusWriter(w)

	route, matched := p.table.Match(r.URL.Path)
	if !matched {
		api.WriteError(sw, r, gwerr.NotFound("no route for path"))
		p.record(start, r, sw.Status(), "", "", "")
		return
	}

	identity, plan, err := p.authenticate(r, route)
	if err != nil {
		api.WriteError(sw, r, err)
		p.record(start, r, sw.Status(), route.Backend, identity.UserID, plan)
		return
	}

	if err := p.checkQuota(sw, r, route, identity, plan); err != nil {
		api.WriteError(sw, r, err)
		p.record(start, r, sw.Status(), route.Backend, identity.UserID, plan)
		return
	}

	resp, err := p.forward(r, route, identity, plan)
	if err != nil {
		api.WriteError(sw, r, err)
		p.record(start, r, sw.Status(), route.Backend, identity.UserID, plan)
		return
	}

	filterResponseHeaders(sw, resp.Header)
	sw.WriteHeader(resp.StatusCode)
	if _, err := sw.Write(resp.Body); err != nil {
		logging.Debug().Err(err).Msg("write response to caller failed")
	}
	p.record(start, r, resp.StatusCode, route.Backend, identity.UserID, plan)
}

// authenticate resolves the caller identity and subscription plan per
// the route's requirements. Anonymous routes return a zero identity.
func (p *Proxy) authenticate(r *http.Request, route config.RouteConfig) (auth.Identity, string, error) {
	needsPlan := route.RequiredPlan != "" || route.RateLimitPolicy == "subscription"
	if !route.RequiresAuth && !needsPlan {
		return auth.Identity{}, "", nil
	}

	if p.verifier == nil {
		return auth.Identity{}, "", gwerr.Internal("authentication required but no verifier configured")
	}
	identity, err := p.verifier.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		return auth.Identity{}, "", err
	}

	var plan string
	if needsPlan {
		plan, err = p.resolver.Resolve(r.Context(), plans.Subject{
			UserID:    identity.UserID,
			ClaimPlan: identity.Plan,
		})
		if err != nil {
			// The chain ends in a static default; an error here means
			// even that was bypassed. Degrade to the configured floor.
			plan = p.cfg.Plans.DefaultPlan
		}
	}

	if route.RequiredPlan != "" {
		if err := p.gate.Check(plan, route.RequiredPlan); err != nil {
			return identity, plan, err
		}
	}
	return identity, plan, nil
}

// checkQuota applies the route's rate limit policy and sets the
// X-RateLimit-* headers from the check result.
func (p *Proxy) checkQuota(w http.ResponseWriter, r *http.Request, route config.RouteConfig, identity auth.Identity, plan string) error {
	if route.RateLimitPolicy == "" {
		return nil
	}

	key := identity.UserID
	if key == "" {
		key = clientIP(r)
	}

	var result ratelimit.Result
	var err error
	if route.RateLimitPolicy == "subscription" {
		result, err = p.limiter.CheckWithLimit("subscription", key, p.cfg.RateLimit.PlanQuotas[plan])
	} else {
		result, err = p.limiter.Check(route.RateLimitPolicy, key)
	}
	if err != nil {
		return gwerr.Wrap(gwerr.KindInternal, "rate limit check failed", err)
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))

	if !result.Allowed {
		return ratelimit.RejectionError(route.RateLimitPolicy, result)
	}
	return nil
}

// forward buffers the body, rewrites the request, and executes it
// against the route's backend pool, optionally through its breaker.
func (p *Proxy) forward(r *http.Request, route config.RouteConfig, identity auth.Identity, plan string) (*balancer.Response, error) {
	bal, ok := p.balancers[route.Backend]
	if !ok {
		return nil, gwerr.Internal("no pool configured for backend " + route.Backend)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, gwerr.Wrap(gwerr.KindValidation, "read request body", err)
	}

	path := RewritePath(route, r.URL.Path)
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	header := outboundHeaders(r.Header)
	if identity.UserID != "" {
		header.Set("X-User-ID", identity.UserID)
	}
	if plan != "" {
		header.Set("X-User-Plan", plan)
	}
	header.Set("X-Request-ID", middleware.GetRequestID(r.Context()))
	header.Set("X-Forwarded-For", clientIP(r))

	spec := balancer.RequestSpec{
		Method:  r.Method,
		Path:    path,
		Header:  header,
		Body:    body,
		Timeout: route.Timeout,
	}

	execute := func() (*balancer.Response, error) {
		if route.LoadBalancer {
			return bal.Execute(r.Context(), spec)
		}
		return bal.ExecuteOnce(r.Context(), spec)
	}

	if !route.CircuitBreaker {
		return execute()
	}

	var resp *balancer.Response
	br := p.breakers.For(route.Backend)
	err = br.Execute(func() error {
		var execErr error
		resp, execErr = execute()
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// record appends the request's metric to the stats history and hands
// it to the access event sink.
func (p *Proxy) record(start time.Time, r *http.Request, status int, backend, caller, plan string) {
	m := models.RequestMetric{
		Timestamp:    start,
		Method:       r.Method,
		Path:         NormalizePath(r.URL.Path),
		StatusCode:   status,
		ResponseTime: p.now().Sub(start),
		Backend:      backend,
		Caller:       caller,
	}
	p.stats.Record(m)
	if p.emit != nil {
		p.emit(m, plan, clientIP(r), middleware.GetRequestID(r.Context()))
	}
}
