// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FailureLimiter throttles operator credential guessing per client IP
// with a token bucket. Each failed attempt spends a token; an IP with
// no tokens left is locked out until the bucket refills.
type FailureLimiter struct {
	mu      sync.Mutex
	entries map[string]*failureEntry

	rate  rate.Limit
	burst int

	now func() time.Time
}

type failureEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewFailureLimiter allows burst failed attempts per IP, refilling at
// perSecond tokens per second. Non-positive arguments fall back to
// one token per second with a burst of five.
func NewFailureLimiter(perSecond float64, burst int) *FailureLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &FailureLimiter{
		entries: make(map[string]*failureEntry),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// Locked reports whether the IP has exhausted its failure budget.
func (fl *FailureLimiter) Locked(ip string) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	entry, ok := fl.entries[ip]
	if !ok {
		return false
	}
	entry.lastAccess = fl.now()
	return entry.limiter.TokensAt(fl.now()) < 1
}

// RecordFailure spends one failure token for the IP.
func (fl *FailureLimiter) RecordFailure(ip string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	entry, ok := fl.entries[ip]
	if !ok {
		entry = &failureEntry{
			limiter: rate.NewLimiter(fl.rate, fl.burst),
		}
		fl.entries[ip] = entry
	}
	entry.lastAccess = fl.now()
	entry.limiter.AllowN(fl.now(), 1)
}

// Cleanup drops entries idle for longer than maxIdle and returns the
// count removed.
func (fl *FailureLimiter) Cleanup(maxIdle time.Duration) int {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	threshold := fl.now().Add(-maxIdle)
	removed := 0
	for ip, entry := range fl.entries {
		if entry.lastAccess.Before(threshold) {
			delete(fl.entries, ip)
			removed++
		}
	}
	return removed
}
