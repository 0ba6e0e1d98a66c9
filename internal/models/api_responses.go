// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package models

import (
	"time"
)

// APIResponse is the envelope for every body the gateway originates:
// administrative API responses, health responses, and the classified
// errors produced when a proxied call fails. Successfully proxied
// requests pass the upstream body through untouched and never see this
// wrapper.
//
// Fields:
//   - Success: true when the request completed, false on any error
//   - Data: Response payload (omitted on error)
//   - Error: Error details (omitted on success)
//   - Timestamp: Server time when the response was generated (RFC3339)
//   - RequestID: Correlation id, also echoed in the X-Request-ID header
//
// Example successful response:
//
//	{
//	  "success": true,
//	  "data": {"score": 87, "factors": {...}},
//	  "timestamp": "2026-08-24T12:00:00Z",
//	  "requestId": "9f1c2a7e-44d0-4c1b-8a3f-2b9d6c1e0f55"
//	}
//
// Example error response:
//
//	{
//	  "success": false,
//	  "error": {
//	    "code": "RATE_LIMIT_EXCEEDED",
//	    "message": "rate limit exceeded for policy search",
//	    "details": {"limit": 30, "remaining": 0}
//	  },
//	  "timestamp": "2026-08-24T12:00:00Z",
//	  "requestId": "9f1c2a7e-44d0-4c1b-8a3f-2b9d6c1e0f55"
//	}
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId"`
}

// APIError carries structured error details inside the envelope.
//
// Fields:
//   - Code: Machine-readable error code (e.g., "BAD_GATEWAY")
//   - Message: Human-readable error message, safe for callers
//   - Details: Additional context (field names, limits, etc.)
//
// The full code set: VALIDATION_ERROR, AUTHENTICATION_ERROR,
// AUTHORIZATION_ERROR, NOT_FOUND, RATE_LIMIT_EXCEEDED,
// SERVICE_UNAVAILABLE, BAD_GATEWAY, GATEWAY_TIMEOUT, INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewSuccess wraps data in a success envelope stamped with the current time.
func NewSuccess(data interface{}, requestID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewError wraps an error code and message in an error envelope.
func NewError(code, message string, details map[string]interface{}, requestID string) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
