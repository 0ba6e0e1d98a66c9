// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package breaker

import (
	"sort"
	"sync"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/models"
)

// Manager owns the per-backend breakers. Breakers are created lazily
// on first use of a backend name and live for the process lifetime, so
// every request routed to a backend shares one breaker. The manager is
// plain state owned by the gateway context; tests build as many
// independent managers as they need.
type Manager struct {
	cfg       config.BreakerConfig
	listeners []StateListener

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager creates a manager applying cfg's defaults and per-backend
// overrides. Listeners are attached to every breaker the manager
// creates.
func NewManager(cfg config.BreakerConfig, listeners ...StateListener) *Manager {
	return &Manager{
		cfg:       cfg,
		listeners: listeners,
		breakers:  make(map[string]*Breaker),
	}
}

// For returns the breaker for a backend, creating it on first use.
func (m *Manager) For(backend string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[backend]; ok {
		return b
	}
	threshold, resetTimeout := m.cfg.BreakerFor(backend)
	b := New(backend, threshold, resetTimeout, m.cfg.ExpectedErrors, m.listeners...)
	m.breakers[backend] = b
	return b
}

// Get returns the breaker for a backend if one has been created.
func (m *Manager) Get(backend string) (*Breaker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[backend]
	return b, ok
}

// Statuses returns the admin view of every breaker, sorted by backend
// name for stable output.
func (m *Manager) Statuses() []models.BreakerStatus {
	m.mu.Lock()
	breakers := make([]*Breaker, 0, len(m.breakers))
	for _, b := range m.breakers {
		breakers = append(breakers, b)
	}
	m.mu.Unlock()

	out := make([]models.BreakerStatus, 0, len(breakers))
	for _, b := range breakers {
		out = append(out, b.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Backend < out[j].Backend })
	return out
}
