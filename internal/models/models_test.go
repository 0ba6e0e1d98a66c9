// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestAPIResponse_SuccessEnvelopeKeys(t *testing.T) {
	resp := NewSuccess(map[string]int{"score": 87}, "req-123")

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	for _, key := range []string{"success", "data", "timestamp", "requestId"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("envelope missing key %q", key)
		}
	}
	if _, ok := raw["error"]; ok {
		t.Error("success envelope must omit the error key")
	}
	if raw["success"] != true {
		t.Errorf("success = %v, want true", raw["success"])
	}
	if raw["requestId"] != "req-123" {
		t.Errorf("requestId = %v, want req-123", raw["requestId"])
	}
}

func TestAPIResponse_ErrorEnvelopeKeys(t *testing.T) {
	resp := NewError("RATE_LIMIT_EXCEEDED", "rate limit exceeded for policy search",
		map[string]interface{}{"limit": 30, "remaining": 0}, "req-456")

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if raw["success"] != false {
		t.Errorf("success = %v, want false", raw["success"])
	}
	if _, ok := raw["data"]; ok {
		t.Error("error envelope must omit the data key")
	}

	errObj, ok := raw["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("error key is %T, want object", raw["error"])
	}
	if errObj["code"] != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("error.code = %v", errObj["code"])
	}
	if errObj["message"] == "" {
		t.Error("error.message must be populated")
	}
	if _, ok := errObj["details"]; !ok {
		t.Error("error.details should survive serialization when set")
	}
}

func TestAPIError_DetailsOmittedWhenEmpty(t *testing.T) {
	data, err := json.Marshal(&APIError{Code: "NOT_FOUND", Message: "no such route"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if _, ok := raw["details"]; ok {
		t.Error("empty details must be omitted")
	}
}

func TestStatusClassCounts_JSONKeys(t *testing.T) {
	data, err := json.Marshal(StatusClassCounts{Class2xx: 10, Class5xx: 2})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if raw["2xx"] != 10 {
		t.Errorf(`raw["2xx"] = %d, want 10`, raw["2xx"])
	}
	if raw["5xx"] != 2 {
		t.Errorf(`raw["5xx"] = %d, want 2`, raw["5xx"])
	}
}

func TestRequestMetric_IsError(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, false},
		{204, false},
		{301, false},
		{399, false},
		{400, true},
		{404, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		m := RequestMetric{StatusCode: tt.status}
		if got := m.IsError(); got != tt.want {
			t.Errorf("IsError() with status %d = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRequestMetric_StatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{299, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{502, "5xx"},
		{599, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			m := RequestMetric{StatusCode: tt.status}
			if got := m.StatusClass(); got != tt.want {
				t.Errorf("StatusClass() with status %d = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestNewSuccess_TimestampIsUTC(t *testing.T) {
	resp := NewSuccess(nil, "req-789")
	if resp.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", resp.Timestamp.Location())
	}
	if time.Since(resp.Timestamp) > time.Minute {
		t.Error("Timestamp should be freshly stamped")
	}
}
