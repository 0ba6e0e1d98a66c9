// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package balancer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/ostium/internal/gwerr"
	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/metrics"
	"github.com/tomtom215/ostium/internal/upstream"
)

// RequestSpec describes one outbound call, already rewritten by the
// proxy layer. The body is buffered so retries can replay it.
type RequestSpec struct {
	Method string
	// Path is the rewritten path plus raw query, e.g. "/videos?page=2".
	Path   string
	Header http.Header
	Body   []byte

	// Timeout bounds each individual attempt. Zero uses the balancer
	// default.
	Timeout time.Duration
}

// Response is the upstream result handed back to the proxy layer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// maxResponseBody bounds buffered upstream bodies (32 MiB).
const maxResponseBody = 32 << 20

// Execute runs the request against the pool with bounded retry.
//
// Per attempt 0..MaxRetries: select a healthy endpoint, increment its
// connection count, issue the call under the attempt timeout, decrement
// on completion. A connection-class failure (refused, DNS, reset,
// timeout, or upstream 5xx) marks the endpoint unhealthy immediately
// and retries after baseDelay * 2^attempt. When only one endpoint is
// healthy a retry may reselect it. An empty healthy set fails fast with
// no backoff. Exhausting retries surfaces the last classified error.
func (b *Balancer) Execute(ctx context.Context, spec RequestSpec) (*Response, error) {
	b.totalRequests.Add(1)

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = b.cfg.Timeout
	}

	var lastErr error
	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			// Fail fast with no backoff when the pool has drained
			// mid-retry; there is nothing left to wait for.
			if len(b.pool.Healthy()) == 0 {
				break
			}
			delay := b.cfg.BaseDelay * (1 << (attempt - 1))
			b.retriesIssued.Add(1)
			metrics.RecordUpstreamRetry(b.pool.Backend)
			select {
			case <-ctx.Done():
				b.totalFailures.Add(1)
				return nil, gwerr.Wrap(gwerr.KindGatewayTimeout, "request canceled during retry backoff", ctx.Err())
			case <-time.After(delay):
			}
		}

		ep, ok := b.SelectNext()
		if !ok {
			b.totalFailures.Add(1)
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, gwerr.ServiceUnavailable(
				fmt.Sprintf("no healthy endpoint for backend %s", b.pool.Backend))
		}

		resp, err := b.attempt(ctx, ep, spec, timeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		logging.Debug().
			Str("backend", b.pool.Backend).
			Str("endpoint", ep.ID).
			Int("attempt", attempt).
			Err(err).
			Msg("upstream attempt failed")
	}

	b.totalFailures.Add(1)
	return nil, lastErr
}

// ExecuteOnce runs the request against a single selected endpoint
// with no retry, for routes that opt out of failover.
func (b *Balancer) ExecuteOnce(ctx context.Context, spec RequestSpec) (*Response, error) {
	b.totalRequests.Add(1)

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = b.cfg.Timeout
	}

	// No strategy selection: these routes address their single
	// configured endpoint, so the first healthy one is taken as-is.
	healthy := b.pool.Healthy()
	if len(healthy) == 0 {
		b.totalFailures.Add(1)
		return nil, gwerr.ServiceUnavailable(
			fmt.Sprintf("no healthy endpoint for backend %s", b.pool.Backend))
	}

	resp, err := b.attempt(ctx, healthy[0], spec, timeout)
	if err != nil {
		b.totalFailures.Add(1)
	}
	return resp, err
}

// attempt issues one call against one endpoint and classifies the
// outcome. Connection-class failures mark the endpoint unhealthy.
func (b *Balancer) attempt(ctx context.Context, ep *upstream.Endpoint, spec RequestSpec, timeout time.Duration) (*Response, error) {
	ep.AcquireConnection()
	defer ep.ReleaseConnection()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimSuffix(ep.URL, "/") + spec.Path
	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, spec.Method, url, body)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.KindInternal, "build upstream request", err)
	}
	for k, vs := range spec.Header {
		req.Header[k] = vs
	}

	start := b.now()
	resp, err := b.client.Do(req)
	elapsed := b.now().Sub(start)

	if err != nil {
		ep.MarkUnhealthy(err.Error(), b.now())
		if isTimeout(attemptCtx, err) {
			metrics.RecordUpstreamAttempt(b.pool.Backend, "timeout", elapsed)
			return nil, gwerr.Wrap(gwerr.KindGatewayTimeout,
				fmt.Sprintf("backend %s did not respond within %s", b.pool.Backend, timeout), err)
		}
		metrics.RecordUpstreamAttempt(b.pool.Backend, "transport_error", elapsed)
		return nil, gwerr.Wrap(gwerr.KindBadGateway,
			fmt.Sprintf("backend %s connection failed", b.pool.Backend), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		ep.MarkUnhealthy(err.Error(), b.now())
		metrics.RecordUpstreamAttempt(b.pool.Backend, "transport_error", elapsed)
		return nil, gwerr.Wrap(gwerr.KindBadGateway,
			fmt.Sprintf("backend %s response read failed", b.pool.Backend), err)
	}

	// Upstream 5xx is a connection-class failure: the endpoint is
	// taken out of rotation and the attempt retried elsewhere.
	if resp.StatusCode >= 500 {
		ep.MarkUnhealthy(fmt.Sprintf("upstream status %d", resp.StatusCode), b.now())
		metrics.RecordUpstreamAttempt(b.pool.Backend, "error_status", elapsed)
		return nil, gwerr.New(gwerr.KindBadGateway,
			fmt.Sprintf("backend %s returned status %d", b.pool.Backend, resp.StatusCode)).
			WithDetails(map[string]interface{}{"upstream_status": resp.StatusCode})
	}

	metrics.RecordUpstreamAttempt(b.pool.Backend, "success", elapsed)
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       respBody,
	}, nil
}

// isTimeout reports whether a transport error is the attempt deadline
// firing rather than a reachability failure.
func isTimeout(attemptCtx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
