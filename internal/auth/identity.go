// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package auth extracts caller identity from bearer tokens and
// verifies the operator credential guarding the admin surface. Token
// issuance belongs to the authentication backend; the gateway only
// checks the HMAC signature and reads claims.
package auth

import (
	"context"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	// Plan is the subscription plan claim from the token, empty when
	// the token carries none. Plan resolution may refine it.
	Plan string
}

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFrom returns the caller identity and whether one is set.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}
