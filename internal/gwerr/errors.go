// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package gwerr defines the gateway's error taxonomy.
//
// Every failure that crosses a package boundary is classified into one of
// nine kinds, each carrying a stable machine-readable code and an HTTP
// status. Handlers serialize classified errors into the standard response
// envelope; a raw transport error never reaches a caller unclassified.
package gwerr

import (
	"errors"
	"net/http"
)

// Kind classifies an error within the gateway taxonomy.
type Kind int

const (
	// KindInternal is the zero value: an unexpected failure inside the
	// gateway itself. Anything unclassified collapses to this.
	KindInternal Kind = iota

	// KindValidation covers malformed or out-of-range caller input.
	KindValidation

	// KindAuthentication covers missing or invalid credentials.
	KindAuthentication

	// KindAuthorization covers authenticated callers lacking permission.
	KindAuthorization

	// KindNotFound covers unknown routes and unknown admin resources.
	KindNotFound

	// KindRateLimit covers quota-exceeded rejections.
	KindRateLimit

	// KindServiceUnavailable covers pools with no healthy endpoint and
	// circuit breakers rejecting in the open state.
	KindServiceUnavailable

	// KindBadGateway covers upstream calls that completed with an error
	// status after retries were exhausted.
	KindBadGateway

	// KindGatewayTimeout covers upstream calls that exceeded their bound.
	KindGatewayTimeout
)

// Code returns the stable machine-readable code for the kind. Codes are
// part of the public API contract and never change.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindAuthentication:
		return "AUTHENTICATION_ERROR"
	case KindAuthorization:
		return "AUTHORIZATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindRateLimit:
		return "RATE_LIMIT_EXCEEDED"
	case KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case KindBadGateway:
		return "BAD_GATEWAY"
	case KindGatewayTimeout:
		return "GATEWAY_TIMEOUT"
	default:
		return "INTERNAL_ERROR"
	}
}

// HTTPStatus returns the HTTP status code the kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindBadGateway:
		return http.StatusBadGateway
	case KindGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// String returns a lowercase name for log fields.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindBadGateway:
		return "bad_gateway"
	case KindGatewayTimeout:
		return "gateway_timeout"
	default:
		return "internal"
	}
}

// Error is a classified gateway error. It carries the taxonomy kind, a
// caller-safe message, optional structured details for the response
// envelope, and the underlying cause when one exists. The cause is
// preserved for errors.Is/errors.As and for logging but is never
// serialized to callers.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	cause   error
}

// New returns a classified error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an existing error under the given kind and message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Error implements the error interface. The code prefix keeps log lines
// grep-able without structured parsing.
func (e *Error) Error() string {
	msg := e.Kind.Code() + ": " + e.Message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is a gateway error of the same kind, so
// errors.Is(err, gwerr.New(gwerr.KindRateLimit, "")) matches regardless
// of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithDetails attaches structured details and returns e for chaining.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// Validation returns a 400-class error for invalid caller input.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Authentication returns a 401-class error for missing or bad credentials.
func Authentication(message string) *Error {
	return New(KindAuthentication, message)
}

// Authorization returns a 403-class error for insufficient permission.
func Authorization(message string) *Error {
	return New(KindAuthorization, message)
}

// NotFound returns a 404-class error for an unknown resource or route.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// RateLimit returns a 429-class error for an exhausted quota.
func RateLimit(message string) *Error {
	return New(KindRateLimit, message)
}

// ServiceUnavailable returns a 503-class error for an unreachable backend.
func ServiceUnavailable(message string) *Error {
	return New(KindServiceUnavailable, message)
}

// BadGateway returns a 502-class error for an upstream error response.
func BadGateway(message string) *Error {
	return New(KindBadGateway, message)
}

// GatewayTimeout returns a 504-class error for an upstream call that
// exceeded its bound.
func GatewayTimeout(message string) *Error {
	return New(KindGatewayTimeout, message)
}

// Internal returns a 500-class error for an unexpected gateway failure.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// KindOf returns err's taxonomy kind. Unclassified errors are internal.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// From returns the classified form of err. An unclassified error is
// wrapped as internal with a generic message so gateway internals never
// leak into a response body.
func From(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return Wrap(KindInternal, "internal server error", err)
}

// HTTPStatus returns the HTTP status for any error, classified or not.
func HTTPStatus(err error) int {
	return KindOf(err).HTTPStatus()
}
