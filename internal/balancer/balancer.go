// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package balancer

import (
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/models"
	"github.com/tomtom215/ostium/internal/upstream"
)

// Selection strategies.
const (
	StrategyRoundRobin       = "round_robin"
	StrategyLeastConnections = "least_connections"
	StrategyWeighted         = "weighted"
	StrategyRandom           = "random"
)

// Balancer selects healthy endpoints from one pool and executes HTTP
// calls against them with bounded retry. There is exactly one Balancer
// per backend name; its round-robin cursor and counters are shared by
// every request routed to that backend.
type Balancer struct {
	pool     *upstream.Pool
	strategy string
	cfg      config.BalancerConfig
	client   *http.Client

	// mu guards the round-robin cursor and the random source. Healthy
	// sets are snapshotted outside the lock.
	mu     sync.Mutex
	cursor int
	rnd    *rand.Rand

	totalRequests atomic.Uint64
	totalFailures atomic.Uint64
	retriesIssued atomic.Uint64

	// sleep is the backoff timer; tests substitute a recorder.
	sleep func(time.Duration)
	// now feeds latency measurements; tests substitute a fake clock.
	now func() time.Time
}

// New creates a balancer over the pool using the given strategy. An
// unrecognized strategy falls back to round-robin. The HTTP client has
// no global timeout; every attempt in Execute carries its own
// deadline.
func New(pool *upstream.Pool, strategy string, cfg config.BalancerConfig) *Balancer {
	switch strategy {
	case StrategyRoundRobin, StrategyLeastConnections, StrategyWeighted, StrategyRandom:
	default:
		strategy = StrategyRoundRobin
	}
	return &Balancer{
		pool:     pool,
		strategy: strategy,
		cfg:      cfg,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Pool returns the registry this balancer selects from.
func (b *Balancer) Pool() *upstream.Pool {
	return b.pool
}

// Strategy returns the configured selection strategy name.
func (b *Balancer) Strategy() string {
	return b.strategy
}

// Seed re-seeds the weighted/random source for deterministic tests.
func (b *Balancer) Seed(seed int64) {
	b.mu.Lock()
	b.rnd = rand.New(rand.NewSource(seed))
	b.mu.Unlock()
}

// SelectNext picks one healthy endpoint, or reports false when the
// healthy set is empty. Callers must treat false as immediate
// unavailability, never as something to retry against the same pool.
func (b *Balancer) SelectNext() (*upstream.Endpoint, bool) {
	healthy := b.pool.Healthy()
	if len(healthy) == 0 {
		return nil, false
	}

	switch b.strategy {
	case StrategyLeastConnections:
		return b.selectLeastConnections(healthy), true
	case StrategyWeighted:
		return b.selectWeighted(healthy), true
	case StrategyRandom:
		b.mu.Lock()
		ep := healthy[b.rnd.Intn(len(healthy))]
		b.mu.Unlock()
		return ep, true
	default:
		return b.selectRoundRobin(healthy), true
	}
}

// selectRoundRobin advances the shared cursor modulo the live healthy
// set size. Ordering is stable (registry order) between selections that
// do not race; under concurrent selection the cursor still always
// advances, so every healthy endpoint is eventually selected.
func (b *Balancer) selectRoundRobin(healthy []*upstream.Endpoint) *upstream.Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	ep := healthy[b.cursor%len(healthy)]
	b.cursor++
	return ep
}

// selectLeastConnections picks the endpoint with the fewest in-flight
// calls, ties broken by registry order.
func (b *Balancer) selectLeastConnections(healthy []*upstream.Endpoint) *upstream.Endpoint {
	best := healthy[0]
	min := best.Connections()
	for _, e := range healthy[1:] {
		if c := e.Connections(); c < min {
			best, min = e, c
		}
	}
	return best
}

// selectWeighted draws r uniform in [0, Σweight) and walks the healthy
// set subtracting weights until r goes negative; that endpoint wins.
// Selection frequency converges to weight_i / Σweight.
func (b *Balancer) selectWeighted(healthy []*upstream.Endpoint) *upstream.Endpoint {
	total := 0
	for _, e := range healthy {
		total += e.Weight()
	}

	b.mu.Lock()
	r := b.rnd.Intn(total)
	b.mu.Unlock()

	for _, e := range healthy {
		r -= e.Weight()
		if r < 0 {
			return e
		}
	}
	// Weights changed between the sum and the walk; the last endpoint
	// absorbs the remainder.
	return healthy[len(healthy)-1]
}

// Stats returns the admin view: the pool summary annotated with the
// balancer's strategy and request counters.
func (b *Balancer) Stats() models.PoolStatus {
	s := b.pool.Summary()
	s.Strategy = b.strategy
	s.TotalRequests = b.totalRequests.Load()
	s.TotalFailures = b.totalFailures.Load()
	s.RetriesIssued = b.retriesIssued.Load()
	return s
}
