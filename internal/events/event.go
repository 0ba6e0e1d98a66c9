// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package events is the access event pipeline: after every completed
// proxied request the gateway can emit an AccessEvent to NATS
// JetStream, optionally buffered through the write-ahead log first so
// broker outages lose nothing. The pipeline is advisory; a publish
// failure never fails the caller's request.
package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/ostium/internal/models"
)

// AccessEvent is one completed gateway request on the wire.
type AccessEvent struct {
	EventID    string    `json:"event_id"`
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	DurationMS float64   `json:"duration_ms"`
	Backend    string    `json:"backend,omitempty"`
	Caller     string    `json:"caller,omitempty"`
	Plan       string    `json:"plan,omitempty"`
	ClientIP   string    `json:"client_ip,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}

// NewAccessEvent builds the event for one request record. The path has
// already been normalized by the proxy, so identifiers never leak into
// subjects or payloads.
func NewAccessEvent(m models.RequestMetric, plan, clientIP, requestID string) *AccessEvent {
	return &AccessEvent{
		EventID:    uuid.New().String(),
		Timestamp:  m.Timestamp.UTC(),
		Method:     m.Method,
		Path:       m.Path,
		StatusCode: m.StatusCode,
		DurationMS: float64(m.ResponseTime.Microseconds()) / 1000.0,
		Backend:    m.Backend,
		Caller:     m.Caller,
		Plan:       plan,
		ClientIP:   clientIP,
		RequestID:  requestID,
	}
}

// Subject returns the event's NATS subject, access.{backend}.{class},
// so consumers can filter by backend or by outcome with wildcards.
// Requests that never matched a route publish under "unrouted".
func (e *AccessEvent) Subject() string {
	backend := e.Backend
	if backend == "" {
		backend = "unrouted"
	}
	return fmt.Sprintf("access.%s.%s", backend, statusClass(e.StatusCode))
}

// Marshal serializes the event.
func (e *AccessEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalAccessEvent deserializes one event.
func UnmarshalAccessEvent(data []byte) (*AccessEvent, error) {
	var e AccessEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal access event: %w", err)
	}
	return &e, nil
}

func statusClass(code int) string {
	return models.RequestMetric{StatusCode: code}.StatusClass()
}
