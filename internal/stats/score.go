// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package stats

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/ostium/internal/models"
)

// Factor weights; they sum to 100 so the score is a plain weighted
// average of the four impacts.
const (
	weightErrorRate    = 30
	weightP95Latency   = 25
	weightThroughput   = 20
	weightAvailability = 25
)

// Latency impact anchors: full marks at or below 200ms p95, zero at
// 2000ms, linear between.
const (
	latencyFloorMS   = 200.0
	latencyCeilingMS = 2000.0
)

// throughputReference is the req/min rate that earns full throughput
// marks.
const throughputReference = 100.0

// HealthScore computes the composite 0-100 gateway health number over
// the window. Each factor is normalized to a 0-100 impact, weighted,
// and the sum rounded to the nearest integer. An empty window scores
// a full 100: no traffic is not unhealthy.
func (a *Aggregator) HealthScore(window time.Duration) models.HealthScore {
	if window <= 0 {
		window = a.cfg.Window
	}
	entries := a.window(window)

	if len(entries) == 0 {
		return models.HealthScore{
			Score: 100,
			Factors: models.HealthFactors{
				ErrorRate:    models.HealthFactor{Impact: 100, Weight: weightErrorRate},
				P95Latency:   models.HealthFactor{Impact: 100, Weight: weightP95Latency},
				Throughput:   models.HealthFactor{Impact: 100, Weight: weightThroughput},
				Availability: models.HealthFactor{Impact: 100, Weight: weightAvailability},
			},
		}
	}

	var errors, unavailable int
	latencies := make([]float64, 0, len(entries))
	for _, m := range entries {
		latencies = append(latencies, float64(m.ResponseTime)/float64(time.Millisecond))
		if m.IsError() {
			errors++
		}
		if m.StatusCode >= 500 {
			unavailable++
		}
	}
	sort.Float64s(latencies)

	errorRate := float64(errors) / float64(len(entries))
	p95 := percentile(latencies, 95)
	throughput := float64(len(entries)) / window.Minutes()
	availability := float64(len(entries)-unavailable) / float64(len(entries))

	factors := models.HealthFactors{
		ErrorRate: models.HealthFactor{
			Value:  errorRate,
			Impact: clampImpact(100 - errorRate*500),
			Weight: weightErrorRate,
		},
		P95Latency: models.HealthFactor{
			Value:  p95,
			Impact: latencyImpact(p95),
			Weight: weightP95Latency,
		},
		Throughput: models.HealthFactor{
			Value:  throughput,
			Impact: clampImpact(throughput / throughputReference * 100),
			Weight: weightThroughput,
		},
		Availability: models.HealthFactor{
			Value:  availability,
			Impact: clampImpact(availability * 100),
			Weight: weightAvailability,
		},
	}

	weighted := factors.ErrorRate.Impact*weightErrorRate +
		factors.P95Latency.Impact*weightP95Latency +
		factors.Throughput.Impact*weightThroughput +
		factors.Availability.Impact*weightAvailability

	return models.HealthScore{
		Score:   int(math.Round(weighted / 100)),
		Factors: factors,
	}
}

// latencyImpact maps p95 milliseconds to 0-100: flat 100 up to the
// floor, linear decay to 0 at the ceiling.
func latencyImpact(p95 float64) float64 {
	if p95 <= latencyFloorMS {
		return 100
	}
	if p95 >= latencyCeilingMS {
		return 0
	}
	return (latencyCeilingMS - p95) / (latencyCeilingMS - latencyFloorMS) * 100
}

func clampImpact(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
