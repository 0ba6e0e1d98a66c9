// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

//go:build integration

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// BackendCapture is one request a MockBackend received.
type BackendCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// MockBackend is a scriptable upstream service: it captures every
// request and answers with a configured status and body. Used as a
// pool endpoint in end-to-end gateway tests.
type MockBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []BackendCapture

	// ResponseStatus and ResponseBody form the default reply.
	ResponseStatus int
	ResponseBody   []byte

	// ResponseFunc overrides the default reply when set.
	ResponseFunc func(w http.ResponseWriter, r *http.Request)
}

// NewMockBackend starts a backend answering 200 with an empty body
// until scripted otherwise. The server is torn down with the test.
func NewMockBackend(t *testing.T) *MockBackend {
	t.Helper()

	b := &MockBackend{ResponseStatus: http.StatusOK}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			_ = r.Body.Close()
		}

		b.mu.Lock()
		b.captures = append(b.captures, BackendCapture{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		b.mu.Unlock()

		if b.ResponseFunc != nil {
			b.ResponseFunc(w, r)
			return
		}
		w.WriteHeader(b.ResponseStatus)
		if b.ResponseBody != nil {
			_, _ = w.Write(b.ResponseBody)
		}
	}))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the backend's base address for pool configuration.
func (b *MockBackend) URL() string {
	return b.Server.URL
}

// Captures returns a copy of every request received so far.
func (b *MockBackend) Captures() []BackendCapture {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BackendCapture, len(b.captures))
	copy(out, b.captures)
	return out
}

// ClearCaptures resets the capture log.
func (b *MockBackend) ClearCaptures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captures = nil
}

// WaitForCaptures polls until at least n requests arrived or the
// timeout elapses.
func (b *MockBackend) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		count := len(b.captures)
		b.mu.Unlock()
		if count >= n {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}
