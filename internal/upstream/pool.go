// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package upstream

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ostium/internal/metrics"
	"github.com/tomtom215/ostium/internal/models"
)

// Pool is the instance registry for one backend service: the ordered
// list of known endpoints plus their live health. There is exactly one
// Pool per backend name; the balancer, the prober, and the admin API
// all share it.
//
// The mutex guards the endpoint slice only. Endpoint health and
// connection counts carry their own synchronization, so probe updates
// never block endpoint selection.
type Pool struct {
	// Backend is the backend service name this pool serves.
	Backend string

	mu        sync.RWMutex
	endpoints []*Endpoint
}

// NewPool creates an empty registry for the named backend.
func NewPool(backend string) *Pool {
	return &Pool{Backend: backend}
}

// Add registers an endpoint at the end of the registry order. An empty
// id is replaced with a generated UUID. Adding a duplicate id is an
// error.
func (p *Pool) Add(id, url string, weight int) (*Endpoint, error) {
	if id == "" {
		id = uuid.NewString()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.endpoints {
		if e.ID == id {
			return nil, fmt.Errorf("pool %s: endpoint %s already registered", p.Backend, id)
		}
	}
	ep := NewEndpoint(id, url, weight)
	p.endpoints = append(p.endpoints, ep)
	p.publishGauges()
	return ep, nil
}

// Remove unregisters an endpoint by id. It returns false when the id
// is unknown.
func (p *Pool) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.endpoints {
		if e.ID == id {
			p.endpoints = append(p.endpoints[:i], p.endpoints[i+1:]...)
			p.publishGauges()
			return true
		}
	}
	return false
}

// Get returns the endpoint with the given id, or nil.
func (p *Pool) Get(id string) *Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.endpoints {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Endpoints returns a snapshot of the registry in registration order.
// The returned slice is the caller's to keep; the endpoints themselves
// are shared.
func (p *Pool) Endpoints() []*Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Endpoint, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

// Healthy returns the currently selectable endpoints in registration
// order.
func (p *Pool) Healthy() []*Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Endpoint, 0, len(p.endpoints))
	for _, e := range p.endpoints {
		if e.Healthy() {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the total number of registered endpoints.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.endpoints)
}

// Summary returns the admin view of the pool: per-endpoint status plus
// aggregate counts. Strategy and request counters are filled in by the
// balancer layer, which owns them.
func (p *Pool) Summary() models.PoolStatus {
	eps := p.Endpoints()
	status := models.PoolStatus{
		Backend:   p.Backend,
		Endpoints: make([]models.EndpointStatus, 0, len(eps)),
	}
	for _, e := range eps {
		h := e.Health()
		es := models.EndpointStatus{
			ID:                 e.ID,
			Address:            e.URL,
			Weight:             e.Weight(),
			Status:             h.Status.String(),
			CurrentConnections: e.Connections(),
			LastResponseMS:     float64(h.LastResponseTime.Microseconds()) / 1000.0,
			LastError:          h.LastError,
		}
		if !h.LastChecked.IsZero() {
			checked := h.LastChecked
			es.LastChecked = &checked
		}
		if h.Status == StatusHealthy {
			status.HealthyCount++
		}
		status.ActiveConnections += es.CurrentConnections
		status.Endpoints = append(status.Endpoints, es)
	}
	status.EndpointCount = len(eps)
	if avg := p.AverageProbeLatency(); avg > 0 {
		status.AvgProbeLatencyMS = float64(avg.Microseconds()) / 1000.0
	}
	return status
}

// UpdateHealthGauges refreshes the Prometheus per-pool endpoint gauges.
// Called by the prober after each probe cycle and by pool mutations.
func (p *Pool) UpdateHealthGauges() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	p.publishGauges()
}

// publishGauges pushes endpoint counts by status. Callers hold p.mu.
func (p *Pool) publishGauges() {
	var healthy, unhealthy, unknown int
	for _, e := range p.endpoints {
		switch e.Health().Status {
		case StatusHealthy:
			healthy++
		case StatusUnhealthy:
			unhealthy++
		default:
			unknown++
		}
	}
	metrics.UpdatePoolEndpoints(p.Backend, healthy, unhealthy, unknown)
}

// AverageProbeLatency returns the mean last-probe response time across
// endpoints that have been probed at least once.
func (p *Pool) AverageProbeLatency() time.Duration {
	eps := p.Endpoints()
	var sum time.Duration
	var n int
	for _, e := range eps {
		h := e.Health()
		if !h.LastChecked.IsZero() {
			sum += h.LastResponseTime
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / time.Duration(n)
}
