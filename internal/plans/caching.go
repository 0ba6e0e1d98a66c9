// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package plans

import (
	"context"

	"github.com/tomtom215/ostium/internal/cache"
	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/metrics"
)

const cacheName = "plans"

// CachingResolver memoizes successful plan lookups per user ID.
// Failures are never cached, so a recovering billing backend is
// queried again immediately.
type CachingResolver struct {
	inner Resolver
	lru   *cache.LRU[string]
}

// NewCachingResolver bounds the cache per PlansConfig.
func NewCachingResolver(inner Resolver, cfg config.PlansConfig) *CachingResolver {
	return &CachingResolver{
		inner: inner,
		lru:   cache.NewLRU[string](cfg.CacheSize, cfg.CacheTTL),
	}
}

func (r *CachingResolver) Resolve(ctx context.Context, sub Subject) (string, error) {
	if sub.UserID == "" {
		return "", errNoPlan
	}

	if plan, ok := r.lru.Get(sub.UserID); ok {
		metrics.RecordCacheHit(cacheName)
		return plan, nil
	}
	metrics.RecordCacheMiss(cacheName)

	plan, err := r.inner.Resolve(ctx, sub)
	if err != nil {
		return "", err
	}

	r.lru.Add(sub.UserID, plan)
	metrics.SetCacheEntries(cacheName, r.lru.Len())
	return plan, nil
}

// Invalidate drops the cached plan for a user, e.g. after an admin
// override or a billing webhook.
func (r *CachingResolver) Invalidate(userID string) bool {
	removed := r.lru.Remove(userID)
	metrics.SetCacheEntries(cacheName, r.lru.Len())
	return removed
}

// Sweep evicts expired entries and refreshes the size gauge.
func (r *CachingResolver) Sweep() int {
	removed := r.lru.CleanupExpired()
	if removed > 0 {
		for i := 0; i < removed; i++ {
			metrics.RecordCacheEviction(cacheName)
		}
	}
	metrics.SetCacheEntries(cacheName, r.lru.Len())
	return removed
}
