// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package api serves the gateway's own surfaces: the envelope writers
// shared with the proxy error path, the operator-only admin subtree at
// /admin/v1, and the service endpoints /healthz and /metrics.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ostium/internal/gwerr"
	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/middleware"
	"github.com/tomtom215/ostium/internal/models"
)

// exposeDetail controls whether wrapped error text is added to error
// envelopes. Enabled only in development mode; production callers get
// the classified message alone.
var exposeDetail = false

// SetDevelopmentMode toggles diagnostic detail in error envelopes.
// Called once at startup from the server mode config.
func SetDevelopmentMode(enabled bool) {
	exposeDetail = enabled
}

// WriteSuccess writes data in a success envelope with status 200.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	WriteSuccessStatus(w, r, http.StatusOK, data)
}

// WriteSuccessStatus writes data in a success envelope with an
// explicit status code.
func WriteSuccessStatus(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, status, models.NewSuccess(data, middleware.GetRequestID(r.Context())))
}

// WriteError classifies err and writes the error envelope with the
// kind's HTTP status. Unclassified errors collapse to a generic 500
// so gateway internals never leak.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ge := gwerr.From(err)

	message := ge.Message
	if exposeDetail {
		if cause := ge.Unwrap(); cause != nil {
			message = message + ": " + cause.Error()
		}
	}

	if ge.Kind == gwerr.KindInternal {
		logging.Error().
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Err(err).
			Msg("internal error serving request")
	}

	resp := models.NewError(ge.Kind.Code(), message, ge.Details, middleware.GetRequestID(r.Context()))
	writeJSON(w, ge.Kind.HTTPStatus(), resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode response body")
	}
}
