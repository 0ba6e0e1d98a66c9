// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package upstream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/metrics"
)

// Prober is the background health checker. Every interval it fans out
// one concurrent probe per registered endpoint across all pools, waits
// for the whole cycle to finish, then sleeps until the next tick.
// Probing runs entirely outside the request path.
//
// Prober implements suture.Service and is restarted by the supervisor
// if it ever fails.
type Prober struct {
	cfg    config.HealthCheckConfig
	client *http.Client
	pools  []*Pool

	// now is the clock; tests substitute a fake.
	now func() time.Time
}

// NewProber creates a prober over the given pools. The probe client
// never follows redirects and never reuses the gateway's proxy
// transport, so a saturated proxy cannot starve health checking.
func NewProber(cfg config.HealthCheckConfig, pools []*Pool) *Prober {
	return &Prober{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		pools: pools,
		now:   time.Now,
	}
}

// Serve implements suture.Service. An immediate cycle runs at startup
// so endpoints leave the unknown state without waiting a full interval.
func (p *Prober) Serve(ctx context.Context) error {
	logging.Info().
		Str("component", "prober").
		Dur("interval", p.cfg.Interval).
		Dur("timeout", p.cfg.Timeout).
		Int("pools", len(p.pools)).
		Msg("health prober started")

	p.ProbeAll(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "prober").Msg("health prober stopped")
			return ctx.Err()
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (p *Prober) String() string {
	return "health-prober"
}

// ProbeAll probes every endpoint of every pool concurrently and waits
// for all probes to complete.
func (p *Prober) ProbeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, pool := range p.pools {
		for _, ep := range pool.Endpoints() {
			wg.Add(1)
			go func(pool *Pool, ep *Endpoint) {
				defer wg.Done()
				p.Probe(ctx, pool, ep)
			}(pool, ep)
		}
	}
	wg.Wait()

	for _, pool := range p.pools {
		pool.UpdateHealthGauges()
	}
}

// Probe performs one health check: GET {base}{path}; any 2xx within
// the timeout marks the endpoint healthy, anything else unhealthy with
// the failure recorded.
func (p *Prober) Probe(ctx context.Context, pool *Pool, ep *Endpoint) {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	url := strings.TrimSuffix(ep.URL, "/") + p.cfg.Path
	start := p.now()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		p.record(pool, ep, 0, fmt.Errorf("build probe request: %w", err))
		return
	}

	resp, err := p.client.Do(req)
	elapsed := p.now().Sub(start)
	if err != nil {
		p.record(pool, ep, elapsed, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.record(pool, ep, elapsed, fmt.Errorf("probe returned status %d", resp.StatusCode))
		return
	}
	p.record(pool, ep, elapsed, nil)
}

// record applies a probe outcome to the endpoint and emits metrics.
// Transitions are logged; steady states are not.
func (p *Prober) record(pool *Pool, ep *Endpoint, elapsed time.Duration, err error) {
	was := ep.Health().Status
	now := p.now()

	if err == nil {
		ep.MarkHealthy(elapsed, now)
		metrics.RecordHealthProbe(pool.Backend, true, elapsed)
		if was != StatusHealthy {
			logging.Info().
				Str("backend", pool.Backend).
				Str("endpoint", ep.ID).
				Str("was", was.String()).
				Dur("response_time", elapsed).
				Msg("endpoint healthy")
		}
		return
	}

	ep.MarkUnhealthy(err.Error(), now)
	metrics.RecordHealthProbe(pool.Backend, false, elapsed)
	if was != StatusUnhealthy {
		logging.Warn().
			Str("backend", pool.Backend).
			Str("endpoint", ep.ID).
			Str("was", was.String()).
			Err(err).
			Msg("endpoint unhealthy")
	}
}
