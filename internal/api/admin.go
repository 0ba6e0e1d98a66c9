// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ostium/internal/balancer"
	"github.com/tomtom215/ostium/internal/breaker"
	"github.com/tomtom215/ostium/internal/gwerr"
	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/models"
	"github.com/tomtom215/ostium/internal/ratelimit"
	"github.com/tomtom215/ostium/internal/stats"
	"github.com/tomtom215/ostium/internal/upstream"
	"github.com/tomtom215/ostium/internal/validation"
)

// maxAdminBodyBytes bounds admin request bodies. The largest admin
// payload is a single endpoint registration, so 64KiB is generous.
const maxAdminBodyBytes = 64 << 10

// Admin serves the operator-only surface under /admin/v1: traffic
// statistics, breaker inspection and override, pool mutation, and
// rate limit status. Live websocket delivery is mounted alongside by
// the router but owned by the websocket package.
type Admin struct {
	stats     *stats.Aggregator
	breakers  *breaker.Manager
	balancers map[string]*balancer.Balancer
	pools     map[string]*upstream.Pool
	limiter   *ratelimit.Limiter
	prober    *upstream.Prober

	// defaultWindow is the aggregation window used when the caller
	// does not pass ?window.
	defaultWindow time.Duration

	now func() time.Time
}

// AdminOptions carries the shared components the admin surface reads
// from and mutates. Balancers and pools are keyed by backend name and
// must cover the same backends.
type AdminOptions struct {
	Stats         *stats.Aggregator
	Breakers      *breaker.Manager
	Balancers     map[string]*balancer.Balancer
	Pools         map[string]*upstream.Pool
	Limiter       *ratelimit.Limiter
	Prober        *upstream.Prober
	DefaultWindow time.Duration
}

// NewAdmin wires the admin surface over the gateway's live components.
func NewAdmin(opts AdminOptions) *Admin {
	window := opts.DefaultWindow
	if window <= 0 {
		window = time.Hour
	}
	return &Admin{
		stats:         opts.Stats,
		breakers:      opts.Breakers,
		balancers:     opts.Balancers,
		pools:         opts.Pools,
		limiter:       opts.Limiter,
		prober:        opts.Prober,
		defaultWindow: window,
		now:           time.Now,
	}
}

// Routes mounts every admin handler on r. Authentication and edge
// limits are applied by the caller; this subtree assumes an already
// authorized operator.
func (a *Admin) Routes(r chi.Router) {
	r.Get("/stats", a.handleStats)
	r.Get("/stats/backends", a.handleStatsBackends)
	r.Get("/stats/slow", a.handleStatsSlow)
	r.Get("/stats/errors", a.handleStatsErrors)
	r.Get("/stats/traffic", a.handleStatsTraffic)
	r.Get("/stats/health-score", a.handleHealthScore)

	r.Get("/breakers", a.handleBreakers)
	r.Get("/breakers/{backend}", a.handleBreaker)
	r.Post("/breakers/{backend}/state", a.handleBreakerState)

	r.Get("/pools", a.handlePools)
	r.Get("/pools/{backend}", a.handlePool)
	r.Post("/pools/{backend}/endpoints", a.handleAddEndpoint)
	r.Delete("/pools/{backend}/endpoints/{id}", a.handleRemoveEndpoint)
	r.Put("/pools/{backend}/endpoints/{id}/weight", a.handleEndpointWeight)

	r.Get("/ratelimits", a.handleRateLimits)
	r.Get("/snapshot", a.handleSnapshot)
}

// windowFrom reads the optional ?window query parameter as a Go
// duration string ("90s", "15m"). Zero or negative windows are
// rejected rather than silently clamped.
func (a *Admin) windowFrom(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return a.defaultWindow, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, gwerr.Validation(fmt.Sprintf("invalid window %q: use a duration like 5m or 300s", raw))
	}
	if d <= 0 {
		return 0, gwerr.Validation("window must be positive")
	}
	return d, nil
}

func (a *Admin) handleStats(w http.ResponseWriter, r *http.Request) {
	window, err := a.windowFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, a.stats.Summary(window))
}

func (a *Admin) handleStatsBackends(w http.ResponseWriter, r *http.Request) {
	window, err := a.windowFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, a.stats.Summary(window).Backends)
}

func (a *Admin) handleStatsSlow(w http.ResponseWriter, r *http.Request) {
	window, err := a.windowFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := parsePositiveInt(raw)
		if err != nil {
			WriteError(w, r, gwerr.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}
	WriteSuccess(w, r, a.stats.SlowEndpoints(window, limit))
}

func (a *Admin) handleStatsErrors(w http.ResponseWriter, r *http.Request) {
	window, err := a.windowFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, a.stats.ErrorDistribution(window))
}

func (a *Admin) handleStatsTraffic(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, a.stats.TrafficPattern())
}

func (a *Admin) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	window, err := a.windowFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteSuccess(w, r, a.stats.HealthScore(window))
}

func (a *Admin) handleBreakers(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, a.breakers.Statuses())
}

func (a *Admin) handleBreaker(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	b, ok := a.breakers.Get(backend)
	if !ok {
		WriteError(w, r, gwerr.NotFound(fmt.Sprintf("no breaker for backend %q", backend)))
		return
	}
	WriteSuccess(w, r, b.Status())
}

func (a *Admin) handleBreakerState(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	b, ok := a.breakers.Get(backend)
	if !ok {
		WriteError(w, r, gwerr.NotFound(fmt.Sprintf("no breaker for backend %q", backend)))
		return
	}

	var req models.BreakerStateRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	switch req.Action {
	case "force_open":
		b.ForceOpen()
	case "force_close":
		b.ForceClose()
	}
	logging.Info().
		Str("component", "admin").
		Str("backend", backend).
		Str("action", req.Action).
		Msg("breaker state override")
	WriteSuccess(w, r, b.Status())
}

func (a *Admin) handlePools(w http.ResponseWriter, r *http.Request) {
	statuses := make([]models.PoolStatus, 0, len(a.balancers))
	for _, b := range a.balancers {
		statuses = append(statuses, b.Stats())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Backend < statuses[j].Backend
	})
	WriteSuccess(w, r, statuses)
}

func (a *Admin) handlePool(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	b, ok := a.balancers[backend]
	if !ok {
		WriteError(w, r, gwerr.NotFound(fmt.Sprintf("no pool for backend %q", backend)))
		return
	}
	WriteSuccess(w, r, b.Stats())
}

func (a *Admin) handleAddEndpoint(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	pool, ok := a.pools[backend]
	if !ok {
		WriteError(w, r, gwerr.NotFound(fmt.Sprintf("no pool for backend %q", backend)))
		return
	}

	var req models.AddEndpointRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	ep, err := pool.Add(req.ID, req.Address, req.Weight)
	if err != nil {
		WriteError(w, r, gwerr.Wrap(gwerr.KindValidation, "endpoint id already registered", err))
		return
	}
	pool.UpdateHealthGauges()
	logging.Info().
		Str("component", "admin").
		Str("backend", backend).
		Str("endpoint_id", ep.ID).
		Str("address", ep.URL).
		Msg("endpoint registered")

	// Probe out of band so registration returns immediately. The
	// endpoint stays unknown and receives no traffic until the probe
	// lands.
	if a.prober != nil {
		go func() {
			a.prober.Probe(context.Background(), pool, ep)
			pool.UpdateHealthGauges()
		}()
	}
	WriteSuccessStatus(w, r, http.StatusCreated, endpointStatus(ep))
}

func (a *Admin) handleRemoveEndpoint(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	pool, ok := a.pools[backend]
	if !ok {
		WriteError(w, r, gwerr.NotFound(fmt.Sprintf("no pool for backend %q", backend)))
		return
	}

	id := chi.URLParam(r, "id")
	if !pool.Remove(id) {
		WriteError(w, r, gwerr.NotFound(fmt.Sprintf("no endpoint %q in pool %q", id, backend)))
		return
	}
	logging.Info().
		Str("component", "admin").
		Str("backend", backend).
		Str("endpoint_id", id).
		Msg("endpoint removed")
	WriteSuccess(w, r, map[string]interface{}{"removed": id})
}

func (a *Admin) handleEndpointWeight(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	pool, ok := a.pools[backend]
	if !ok {
		WriteError(w, r, gwerr.NotFound(fmt.Sprintf("no pool for backend %q", backend)))
		return
	}

	id := chi.URLParam(r, "id")
	ep := pool.Get(id)
	if ep == nil {
		WriteError(w, r, gwerr.NotFound(fmt.Sprintf("no endpoint %q in pool %q", id, backend)))
		return
	}

	var req models.EndpointWeightRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	ep.SetWeight(req.Weight)
	WriteSuccess(w, r, endpointStatus(ep))
}

func (a *Admin) handleRateLimits(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, a.limiter.Statuses())
}

// handleSnapshot assembles the single-call operator view: traffic
// summary, slow endpoints, error distribution, per-minute traffic,
// health score, and the live state of every breaker, pool, and rate
// limit policy.
func (a *Admin) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	window, err := a.windowFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	pools := make([]models.PoolStatus, 0, len(a.balancers))
	for _, b := range a.balancers {
		pools = append(pools, b.Stats())
	}
	sort.Slice(pools, func(i, j int) bool {
		return pools[i].Backend < pools[j].Backend
	})

	WriteSuccess(w, r, models.MetricsSnapshot{
		GeneratedAt:   a.now().UTC(),
		Summary:       a.stats.Summary(window),
		SlowEndpoints: a.stats.SlowEndpoints(window, 10),
		Errors:        a.stats.ErrorDistribution(window),
		Traffic:       a.stats.TrafficPattern(),
		Health:        a.stats.HealthScore(window),
		Breakers:      a.breakers.Statuses(),
		Pools:         pools,
		RateLimits:    a.limiter.Statuses(),
	})
}

// decodeBody decodes and validates a JSON request body into dst, which
// must carry validate tags.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxAdminBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return gwerr.Wrap(gwerr.KindValidation, "malformed JSON body", err)
	}
	return validation.ValidateStruct(dst)
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("not a positive integer: %q", raw)
	}
	return n, nil
}

func endpointStatus(ep *upstream.Endpoint) models.EndpointStatus {
	h := ep.Health()
	es := models.EndpointStatus{
		ID:                 ep.ID,
		Address:            ep.URL,
		Weight:             ep.Weight(),
		Status:             h.Status.String(),
		CurrentConnections: ep.Connections(),
		LastResponseMS:     float64(h.LastResponseTime.Microseconds()) / 1000.0,
		LastError:          h.LastError,
	}
	if !h.LastChecked.IsZero() {
		checked := h.LastChecked
		es.LastChecked = &checked
	}
	return es
}
