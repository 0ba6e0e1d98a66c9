// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDGenerated(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if got == "" {
		t.Fatal("request id missing from context")
	}
	if rec.Header().Get("X-Request-ID") != got {
		t.Fatalf("header id %q != context id %q", rec.Header().Get("X-Request-ID"), got)
	}
}

func TestRequestIDHonorsUpstream(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "upstream-id-1" {
		t.Fatalf("request id = %q, want upstream-id-1", got)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Fatalf("GetRequestID() = %q on bare context, want empty", id)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on a plain HTTP request")
	}
}

func TestSecurityHeadersHSTSBehindProxy(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("HSTS missing behind a TLS-terminating proxy")
	}
}

func TestStatusWriterCapture(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewStatusWriter(rec)

	if sw.Status() != http.StatusOK {
		t.Fatalf("default status = %d, want 200", sw.Status())
	}

	sw.WriteHeader(http.StatusTeapot)
	if _, err := sw.Write([]byte("short and stout")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if sw.Status() != http.StatusTeapot {
		t.Fatalf("Status() = %d, want 418", sw.Status())
	}
	if sw.BytesWritten() != 15 {
		t.Fatalf("BytesWritten() = %d, want 15", sw.BytesWritten())
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	c1, c2 := net.Pipe()
	_ = c2.Close()
	return c1, bufio.NewReadWriter(bufio.NewReader(c1), bufio.NewWriter(c1)), nil
}

func TestStatusWriterHijack(t *testing.T) {
	rec := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	sw := NewStatusWriter(rec)

	conn, _, err := sw.Hijack()
	if err != nil {
		t.Fatalf("Hijack() error: %v", err)
	}
	defer conn.Close()

	if !rec.hijacked {
		t.Fatal("hijack not forwarded to the underlying writer")
	}
	if sw.Status() != http.StatusSwitchingProtocols {
		t.Fatalf("Status() = %d after hijack, want 101", sw.Status())
	}
}

func TestStatusWriterHijackUnsupported(t *testing.T) {
	sw := NewStatusWriter(httptest.NewRecorder())
	if _, _, err := sw.Hijack(); err == nil {
		t.Fatal("expected an error when the underlying writer cannot hijack")
	}
}

func TestStatusWriterUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewStatusWriter(rec)
	if sw.Unwrap() != rec {
		t.Fatal("Unwrap() did not return the underlying writer")
	}
}

func TestPrometheusMiddlewarePassesThrough(t *testing.T) {
	h := Prometheus(func(r *http.Request) string { return "/api/v1/videos" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/videos", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}
