// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package ratelimit

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/gwerr"
	"github.com/tomtom215/ostium/internal/metrics"
	"github.com/tomtom215/ostium/internal/models"
)

// Result is the outcome of one quota check. Limit, Remaining, and
// Reset are surfaced to callers via the X-RateLimit-* headers whether
// the request was allowed or not.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// counter is one fixed window for one (policy, caller) pair. The
// window is anchored at the first request in it.
type counter struct {
	count       int
	windowStart time.Time
}

// Limiter enforces independent named fixed-window quota policies. One
// Limiter serves the whole gateway; counters are keyed by
// (policy, caller key) where the caller key is the authenticated
// identity when present, else the client network address.
//
// Correctness never depends on the background sweep: a counter whose
// window has elapsed resets lazily on its next check.
type Limiter struct {
	cfg config.RateLimitConfig

	mu       sync.Mutex
	counters map[string]*counter

	rejections map[string]uint64

	// now is the clock; tests substitute a fake.
	now func() time.Time
}

// New creates a limiter over the configured policy table.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		cfg:        cfg,
		counters:   make(map[string]*counter),
		rejections: make(map[string]uint64),
		now:        time.Now,
	}
}

// Check atomically increments the caller's window counter under the
// named policy and reports whether the request is within quota. The
// first increment of a window anchors it; allowed = count <= limit.
func (l *Limiter) Check(policy, callerKey string) (Result, error) {
	p, ok := l.cfg.Policy(policy)
	if !ok {
		return Result{}, fmt.Errorf("unknown rate limit policy %q", policy)
	}
	return l.check(p.Name, callerKey, p.Limit, p.Window), nil
}

// CheckWithLimit is Check with the policy's limit substituted, used by
// the subscription policy after resolving the caller's plan quota.
func (l *Limiter) CheckWithLimit(policy, callerKey string, limit int) (Result, error) {
	p, ok := l.cfg.Policy(policy)
	if !ok {
		return Result{}, fmt.Errorf("unknown rate limit policy %q", policy)
	}
	if limit <= 0 {
		limit = p.Limit
	}
	return l.check(p.Name, callerKey, limit, p.Window), nil
}

func (l *Limiter) check(policy, callerKey string, limit int, window time.Duration) Result {
	key := policy + "\x00" + callerKey
	now := l.now()

	l.mu.Lock()
	c, ok := l.counters[key]
	if !ok || !now.Before(c.windowStart.Add(window)) {
		c = &counter{windowStart: now}
		l.counters[key] = c
	}
	c.count++
	count := c.count
	reset := c.windowStart.Add(window)

	allowed := count <= limit
	if !allowed {
		l.rejections[policy]++
	}
	l.mu.Unlock()

	metrics.RecordRateLimitCheck(policy, allowed)

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
	}
}

// RejectionError builds the classified error for a rejected check,
// carrying the quota details into the response envelope.
func RejectionError(policy string, r Result) *gwerr.Error {
	return gwerr.New(gwerr.KindRateLimit,
		fmt.Sprintf("rate limit exceeded for policy %s", policy)).
		WithDetails(map[string]interface{}{
			"limit":     r.Limit,
			"remaining": r.Remaining,
			"reset":     r.Reset.UTC().Format(time.RFC3339),
		})
}

// Sweep removes counters whose window has fully elapsed and returns
// the number removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	// Window durations vary per policy; resolve each counter's policy
	// window by its key prefix.
	windows := make(map[string]time.Duration, len(l.cfg.Policies))
	for _, p := range l.cfg.Policies {
		windows[p.Name] = p.Window
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, c := range l.counters {
		policy := key
		if i := strings.IndexByte(key, '\x00'); i >= 0 {
			policy = key[:i]
		}
		window, ok := windows[policy]
		if !ok || !now.Before(c.windowStart.Add(window)) {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}

// ActiveKeys returns the number of live counters per policy.
func (l *Limiter) ActiveKeys() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int)
	for key := range l.counters {
		policy := key
		if i := strings.IndexByte(key, '\x00'); i >= 0 {
			policy = key[:i]
		}
		out[policy]++
	}
	return out
}

// Statuses returns the admin view of the policy table, sorted by
// policy name.
func (l *Limiter) Statuses() []models.RateLimitPolicyStatus {
	active := l.ActiveKeys()

	l.mu.Lock()
	rejections := make(map[string]uint64, len(l.rejections))
	for k, v := range l.rejections {
		rejections[k] = v
	}
	l.mu.Unlock()

	out := make([]models.RateLimitPolicyStatus, 0, len(l.cfg.Policies))
	for _, p := range l.cfg.Policies {
		out = append(out, models.RateLimitPolicyStatus{
			Policy:        p.Name,
			Limit:         p.Limit,
			WindowSeconds: int(p.Window.Seconds()),
			ActiveKeys:    active[p.Name],
			Rejections:    rejections[p.Name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Policy < out[j].Policy })
	return out
}
