// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package upstream

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status is an endpoint's probed health state.
type Status int

const (
	// StatusUnknown is the state of a freshly registered endpoint
	// before its first probe completes.
	StatusUnknown Status = iota

	// StatusHealthy means the last probe returned 2xx within the
	// probe timeout.
	StatusHealthy

	// StatusUnhealthy means the last probe failed, or a proxied call
	// hit a connection-class failure against this endpoint.
	StatusUnhealthy
)

// String returns the wire form used in admin responses and log fields.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Health is the live health record attached to an endpoint. It only
// transitions via probe results or mid-request failure classification.
type Health struct {
	Status           Status
	LastResponseTime time.Duration
	LastChecked      time.Time
	LastError        string
}

// Endpoint is one network-addressable instance of a backend service.
// The owning Pool holds the registry; health is guarded by the
// endpoint's own mutex so probes and balancer failure marks never
// contend with registry mutations, and the connection counter is
// atomic so the balancer request path takes no lock at all.
type Endpoint struct {
	// ID uniquely identifies the endpoint within its pool.
	ID string

	// URL is the base address, e.g. "http://10.0.3.7:8080".
	URL string

	mu     sync.RWMutex
	weight int
	health Health

	connections atomic.Int64
}

// NewEndpoint creates an endpoint in the unknown state. Weights below
// one are clamped to one.
func NewEndpoint(id, url string, weight int) *Endpoint {
	if weight < 1 {
		weight = 1
	}
	return &Endpoint{ID: id, URL: url, weight: weight}
}

// Weight returns the endpoint's relative selection weight.
func (e *Endpoint) Weight() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weight
}

// SetWeight updates the relative selection weight. Values below one
// are clamped to one.
func (e *Endpoint) SetWeight(w int) {
	if w < 1 {
		w = 1
	}
	e.mu.Lock()
	e.weight = w
	e.mu.Unlock()
}

// Health returns a copy of the current health record.
func (e *Endpoint) Health() Health {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health
}

// Healthy reports whether the endpoint is currently selectable.
func (e *Endpoint) Healthy() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health.Status == StatusHealthy
}

// MarkHealthy records a successful probe.
func (e *Endpoint) MarkHealthy(responseTime time.Duration, at time.Time) {
	e.mu.Lock()
	e.health = Health{
		Status:           StatusHealthy,
		LastResponseTime: responseTime,
		LastChecked:      at,
	}
	e.mu.Unlock()
}

// MarkUnhealthy records a failed probe or a connection-class request
// failure against this endpoint.
func (e *Endpoint) MarkUnhealthy(errText string, at time.Time) {
	e.mu.Lock()
	e.health.Status = StatusUnhealthy
	e.health.LastChecked = at
	e.health.LastError = errText
	e.mu.Unlock()
}

// Connections returns the number of in-flight proxied calls.
func (e *Endpoint) Connections() int64 {
	return e.connections.Load()
}

// AcquireConnection increments the in-flight counter.
func (e *Endpoint) AcquireConnection() {
	e.connections.Add(1)
}

// ReleaseConnection decrements the in-flight counter.
func (e *Endpoint) ReleaseConnection() {
	e.connections.Add(-1)
}
