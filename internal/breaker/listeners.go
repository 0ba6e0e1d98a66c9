// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package breaker

import (
	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/metrics"
)

// LogListener logs every breaker transition through the gateway
// logger. Openings are warnings; recoveries are informational.
type LogListener struct{}

// OnStateChange implements StateListener.
func (LogListener) OnStateChange(backend string, from, to State) {
	evt := logging.Info()
	if to == StateOpen {
		evt = logging.Warn()
	}
	evt.
		Str("component", "breaker").
		Str("backend", backend).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state change")
}

// MetricsListener mirrors breaker transitions into Prometheus.
// State encoding: 0 closed, 1 half-open, 2 open.
type MetricsListener struct{}

// OnStateChange implements StateListener.
func (MetricsListener) OnStateChange(backend string, from, to State) {
	metrics.SetBreakerState(backend, stateGauge(to))
	metrics.RecordBreakerTransition(backend, from.String(), to.String())
}

func stateGauge(s State) float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}
