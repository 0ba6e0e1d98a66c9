// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package plans

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ostium/internal/balancer"
	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/metrics"
)

// Executor issues a request against the billing pool. Satisfied by
// *balancer.Balancer so plan lookups get the same failover as proxied
// traffic.
type Executor interface {
	Execute(ctx context.Context, spec balancer.RequestSpec) (*balancer.Response, error)
}

// HTTPResolver looks up the caller's plan from the billing backend.
//
// The lookup runs behind its own circuit breaker, separate from the
// proxy-path breaker for the billing pool: a plan-lookup brownout must
// not be able to trip the breaker that guards paying traffic, and vice
// versa. The breaker uses real time for its interval and timeout
// calculations; tests exercise the resolver through a mock executor
// rather than the breaker.
type HTTPResolver struct {
	exec Executor
	cfg  config.PlansConfig
	cb   *gobreaker.CircuitBreaker[*balancer.Response]
}

// NewHTTPResolver wires the billing lookup behind a circuit breaker
// that opens after a 60% failure rate over at least 10 requests and
// probes recovery after 30 seconds.
func NewHTTPResolver(exec Executor, cfg config.PlansConfig) *HTTPResolver {
	cbName := "plan-lookup"

	cb := gobreaker.NewCircuitBreaker[*balancer.Response](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("plan lookup breaker state transition")
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	})

	return &HTTPResolver{exec: exec, cfg: cfg, cb: cb}
}

// planResponse is the billing backend's lookup payload.
type planResponse struct {
	UserID string `json:"userId"`
	Plan   string `json:"plan"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, sub Subject) (string, error) {
	if sub.UserID == "" {
		return "", errNoPlan
	}

	path := fmt.Sprintf(r.cfg.LookupPath, url.PathEscape(sub.UserID))

	resp, err := r.cb.Execute(func() (*balancer.Response, error) {
		return r.exec.Execute(ctx, balancer.RequestSpec{
			Method:  "GET",
			Path:    path,
			Timeout: r.cfg.Timeout,
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Msg("plan lookup rejected by open breaker")
		}
		return "", err
	}

	if resp.StatusCode == 404 {
		// Unknown user at billing: not a lookup failure, just no
		// subscription on record.
		return "", errNoPlan
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("plan lookup returned status %d", resp.StatusCode)
	}

	var body planResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("decode plan lookup response: %w", err)
	}

	plan := strings.ToLower(strings.TrimSpace(body.Plan))
	if !Known(plan) {
		return "", fmt.Errorf("plan lookup returned unknown plan %q", body.Plan)
	}
	return plan, nil
}
