// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package upstream

import (
	"sync"
	"testing"
	"time"
)

func TestPoolAddRemove(t *testing.T) {
	p := NewPool("catalog")

	a, err := p.Add("a", "http://127.0.0.1:7001", 1)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a.Health().Status != StatusUnknown {
		t.Errorf("new endpoint status = %v, want unknown", a.Health().Status)
	}

	if _, err := p.Add("a", "http://127.0.0.1:7002", 1); err == nil {
		t.Error("duplicate id should be rejected")
	}

	gen, err := p.Add("", "http://127.0.0.1:7003", 0)
	if err != nil {
		t.Fatalf("Add with empty id: %v", err)
	}
	if gen.ID == "" {
		t.Error("empty id should be replaced with a generated one")
	}
	if gen.Weight() != 1 {
		t.Errorf("weight 0 should clamp to 1, got %d", gen.Weight())
	}

	if p.Len() != 2 {
		t.Fatalf("Len = %d, want 2", p.Len())
	}
	if !p.Remove("a") {
		t.Error("Remove existing id should return true")
	}
	if p.Remove("a") {
		t.Error("Remove unknown id should return false")
	}
	if p.Len() != 1 {
		t.Errorf("Len after remove = %d, want 1", p.Len())
	}
}

func TestPoolHealthyFiltersAndOrder(t *testing.T) {
	p := NewPool("catalog")
	now := time.Now()

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		ep, err := p.Add(id, "http://host/"+id, 1)
		if err != nil {
			t.Fatal(err)
		}
		ep.MarkHealthy(time.Millisecond, now)
	}
	p.Get("b").MarkUnhealthy("connection refused", now)

	healthy := p.Healthy()
	if len(healthy) != 2 {
		t.Fatalf("healthy count = %d, want 2", len(healthy))
	}
	if healthy[0].ID != "a" || healthy[1].ID != "c" {
		t.Errorf("healthy order = [%s %s], want registry order [a c]", healthy[0].ID, healthy[1].ID)
	}

	h := p.Get("b").Health()
	if h.Status != StatusUnhealthy || h.LastError != "connection refused" {
		t.Errorf("unhealthy record = %+v, want unhealthy with recorded error", h)
	}
}

func TestPoolSummary(t *testing.T) {
	p := NewPool("playback")
	now := time.Now()

	a, _ := p.Add("a", "http://host/a", 3)
	b, _ := p.Add("b", "http://host/b", 1)
	a.MarkHealthy(10*time.Millisecond, now)
	b.MarkUnhealthy("probe returned status 500", now)
	a.AcquireConnection()
	a.AcquireConnection()

	s := p.Summary()
	if s.Backend != "playback" || s.EndpointCount != 2 || s.HealthyCount != 1 {
		t.Errorf("summary = %+v, want playback 2 endpoints 1 healthy", s)
	}
	if s.Endpoints[0].CurrentConnections != 2 {
		t.Errorf("connections = %d, want 2", s.Endpoints[0].CurrentConnections)
	}
	if s.Endpoints[0].LastResponseMS != 10 {
		t.Errorf("last response ms = %v, want 10", s.Endpoints[0].LastResponseMS)
	}
	if s.Endpoints[1].LastError == "" {
		t.Error("unhealthy endpoint should expose its error")
	}
	if s.ActiveConnections != 2 {
		t.Errorf("active connections = %d, want 2", s.ActiveConnections)
	}
	// Both endpoints were probed; only a recorded a response time.
	if s.AvgProbeLatencyMS != 5 {
		t.Errorf("avg probe latency ms = %v, want 5", s.AvgProbeLatencyMS)
	}
}

func TestPoolConcurrentAccess(t *testing.T) {
	p := NewPool("social")
	for i := 0; i < 4; i++ {
		ep, _ := p.Add("", "http://host", 1)
		ep.MarkHealthy(time.Millisecond, time.Now())
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch i % 4 {
				case 0:
					for _, e := range p.Healthy() {
						e.AcquireConnection()
						e.ReleaseConnection()
					}
				case 1:
					for _, e := range p.Endpoints() {
						e.MarkHealthy(time.Millisecond, time.Now())
					}
				case 2:
					_ = p.Summary()
				case 3:
					ep, _ := p.Add("", "http://host", 1)
					if ep != nil {
						p.Remove(ep.ID)
					}
				}
			}
		}(i)
	}
	wg.Wait()

	for _, e := range p.Endpoints() {
		if c := e.Connections(); c != 0 {
			t.Errorf("endpoint %s has %d leaked connections", e.ID, c)
		}
	}
}

func TestAverageProbeLatency(t *testing.T) {
	p := NewPool("billing")
	now := time.Now()

	a, _ := p.Add("a", "http://host/a", 1)
	b, _ := p.Add("b", "http://host/b", 1)
	p.Add("c", "http://host/c", 1) // never probed

	a.MarkHealthy(10*time.Millisecond, now)
	b.MarkHealthy(30*time.Millisecond, now)

	if got := p.AverageProbeLatency(); got != 20*time.Millisecond {
		t.Errorf("average probe latency = %v, want 20ms over probed endpoints", got)
	}

	empty := NewPool("empty")
	if got := empty.AverageProbeLatency(); got != 0 {
		t.Errorf("average probe latency of empty pool = %v, want 0", got)
	}
}
