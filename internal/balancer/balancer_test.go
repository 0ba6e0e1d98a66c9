// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package balancer

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/upstream"
)

func testBalancerConfig() config.BalancerConfig {
	return config.BalancerConfig{
		Strategy:   StrategyRoundRobin,
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Timeout:    time.Second,
	}
}

// poolWith returns a pool with healthy endpoints named by ids, each
// with the given weight.
func poolWith(t *testing.T, backend string, weights map[string]int, order []string) *upstream.Pool {
	t.Helper()
	p := upstream.NewPool(backend)
	for _, id := range order {
		ep, err := p.Add(id, "http://host/"+id, weights[id])
		if err != nil {
			t.Fatal(err)
		}
		ep.MarkHealthy(time.Millisecond, time.Now())
	}
	return p
}

func TestSelectNextEmptyPool(t *testing.T) {
	b := New(upstream.NewPool("catalog"), StrategyRoundRobin, testBalancerConfig())
	if _, ok := b.SelectNext(); ok {
		t.Error("SelectNext on empty pool should report false")
	}
}

func TestSelectNextSkipsUnhealthy(t *testing.T) {
	pool := poolWith(t, "catalog", map[string]int{"a": 1, "b": 1, "c": 1}, []string{"a", "b", "c"})
	pool.Get("b").MarkUnhealthy("down", time.Now())

	b := New(pool, StrategyRoundRobin, testBalancerConfig())
	for i := 0; i < 10; i++ {
		ep, ok := b.SelectNext()
		if !ok {
			t.Fatal("selection should succeed with healthy endpoints present")
		}
		if ep.ID == "b" {
			t.Fatal("unhealthy endpoint must never be selected")
		}
	}
}

func TestSelectNextAllUnhealthy(t *testing.T) {
	pool := poolWith(t, "catalog", map[string]int{"a": 1}, []string{"a"})
	pool.Get("a").MarkUnhealthy("down", time.Now())

	b := New(pool, StrategyRoundRobin, testBalancerConfig())
	if _, ok := b.SelectNext(); ok {
		t.Error("SelectNext should report false when every endpoint is unhealthy")
	}
}

func TestRoundRobinSequence(t *testing.T) {
	pool := poolWith(t, "catalog", map[string]int{"a": 1, "b": 1, "c": 1}, []string{"a", "b", "c"})
	b := New(pool, StrategyRoundRobin, testBalancerConfig())

	want := []string{"a", "b", "c", "a"}
	for i, w := range want {
		ep, ok := b.SelectNext()
		if !ok {
			t.Fatal("selection failed")
		}
		if ep.ID != w {
			t.Errorf("selection %d = %s, want %s", i, ep.ID, w)
		}
	}
}

func TestRoundRobinAdaptsToHealthChanges(t *testing.T) {
	pool := poolWith(t, "catalog", map[string]int{"a": 1, "b": 1, "c": 1}, []string{"a", "b", "c"})
	b := New(pool, StrategyRoundRobin, testBalancerConfig())

	b.SelectNext() // a
	pool.Get("b").MarkUnhealthy("down", time.Now())

	// The cursor keeps advancing modulo the live healthy set [a, c].
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		ep, ok := b.SelectNext()
		if !ok {
			t.Fatal("selection failed")
		}
		if ep.ID == "b" {
			t.Fatal("unhealthy endpoint selected")
		}
		seen[ep.ID] = true
	}
	if !seen["a"] || !seen["c"] {
		t.Errorf("both healthy endpoints should be selected, saw %v", seen)
	}
}

func TestLeastConnections(t *testing.T) {
	pool := poolWith(t, "catalog", map[string]int{"a": 1, "b": 1, "c": 1}, []string{"a", "b", "c"})
	b := New(pool, StrategyLeastConnections, testBalancerConfig())

	pool.Get("a").AcquireConnection()
	pool.Get("a").AcquireConnection()
	pool.Get("b").AcquireConnection()

	ep, _ := b.SelectNext()
	if ep.ID != "c" {
		t.Errorf("selected %s, want c (zero connections)", ep.ID)
	}

	// Ties break by registry order.
	pool.Get("c").AcquireConnection()
	ep, _ = b.SelectNext()
	if ep.ID != "b" {
		t.Errorf("selected %s, want b (first of the tied minimum)", ep.ID)
	}
}

func TestWeightedDistribution(t *testing.T) {
	weights := map[string]int{"a": 1, "b": 2, "c": 7}
	pool := poolWith(t, "catalog", weights, []string{"a", "b", "c"})
	b := New(pool, StrategyWeighted, testBalancerConfig())
	b.Seed(42)

	const samples = 20000
	counts := map[string]int{}
	for i := 0; i < samples; i++ {
		ep, ok := b.SelectNext()
		if !ok {
			t.Fatal("selection failed")
		}
		counts[ep.ID]++
	}

	total := 0
	for _, w := range weights {
		total += w
	}
	for id, w := range weights {
		want := float64(w) / float64(total)
		got := float64(counts[id]) / samples
		if math.Abs(got-want) > 0.02 {
			t.Errorf("endpoint %s frequency = %.3f, want %.3f ± 0.02", id, got, want)
		}
	}
}

func TestRandomCoversAllEndpoints(t *testing.T) {
	pool := poolWith(t, "catalog", map[string]int{"a": 1, "b": 1, "c": 1}, []string{"a", "b", "c"})
	b := New(pool, StrategyRandom, testBalancerConfig())
	b.Seed(7)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ep, _ := b.SelectNext()
		seen[ep.ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("random selection covered %d endpoints, want 3", len(seen))
	}
}

func TestUnknownStrategyFallsBackToRoundRobin(t *testing.T) {
	pool := poolWith(t, "catalog", map[string]int{"a": 1}, []string{"a"})
	b := New(pool, "fanciest", testBalancerConfig())
	if b.Strategy() != StrategyRoundRobin {
		t.Errorf("strategy = %q, want fallback to round_robin", b.Strategy())
	}
}

func TestConcurrentSelection(t *testing.T) {
	pool := poolWith(t, "catalog", map[string]int{"a": 1, "b": 1, "c": 1}, []string{"a", "b", "c"})
	b := New(pool, StrategyRoundRobin, testBalancerConfig())

	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := map[string]int{}
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[string]int{}
			for i := 0; i < 300; i++ {
				ep, ok := b.SelectNext()
				if !ok {
					t.Error("selection failed under concurrency")
					return
				}
				local[ep.ID]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// No strict fairness under race, but every healthy endpoint must
	// be selected.
	for _, id := range []string{"a", "b", "c"} {
		if counts[id] == 0 {
			t.Errorf("endpoint %s was never selected", id)
		}
	}
}

func BenchmarkSelectRoundRobin(b *testing.B) {
	pool := upstream.NewPool("bench")
	for i := 0; i < 10; i++ {
		ep, _ := pool.Add("", "http://host", 1)
		ep.MarkHealthy(time.Millisecond, time.Now())
	}
	lb := New(pool, StrategyRoundRobin, config.BalancerConfig{
		MaxRetries: 0, BaseDelay: time.Millisecond, Timeout: time.Second,
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lb.SelectNext()
	}
}

func BenchmarkSelectWeighted(b *testing.B) {
	pool := upstream.NewPool("bench")
	for i := 0; i < 10; i++ {
		ep, _ := pool.Add("", "http://host", i+1)
		ep.MarkHealthy(time.Millisecond, time.Now())
	}
	lb := New(pool, StrategyWeighted, config.BalancerConfig{
		MaxRetries: 0, BaseDelay: time.Millisecond, Timeout: time.Second,
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lb.SelectNext()
	}
}
