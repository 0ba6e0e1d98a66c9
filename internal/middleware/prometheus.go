// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tomtom215/ostium/internal/metrics"
)

// Prometheus instruments every request: in-flight gauge, request
// counter, and latency histogram. The route label should be the
// matched route prefix, not the raw path, to bound cardinality; pass
// the resolver used by the proxy's route table.
func Prometheus(routeFor func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.TrackActiveRequest(true)
			defer metrics.TrackActiveRequest(false)

			start := time.Now()
			wrapper := NewStatusWriter(w)

			next.ServeHTTP(wrapper, r)

			route := r.URL.Path
			if routeFor != nil {
				route = routeFor(r)
			}
			metrics.RecordRequest(r.Method, route, wrapper.Status(), time.Since(start))
		})
	}
}

// StatusWriter wraps http.ResponseWriter to capture the status code
// and bytes written.
type StatusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

// NewStatusWriter wraps w, defaulting the status to 200.
func NewStatusWriter(w http.ResponseWriter) *StatusWriter {
	return &StatusWriter{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader captures the status code.
func (sw *StatusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Write tracks the response size.
func (sw *StatusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.written += int64(n)
	return n, err
}

// Hijack hands over the underlying connection so websocket upgrades
// work through the instrumented chain.
func (sw *StatusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer of type %T does not support hijacking", sw.ResponseWriter)
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		sw.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// Flush forwards streaming writes to the underlying writer.
func (sw *StatusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sw *StatusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// Status returns the captured status code.
func (sw *StatusWriter) Status() int {
	return sw.status
}

// BytesWritten returns the response body size so far.
func (sw *StatusWriter) BytesWritten() int64 {
	return sw.written
}
