// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/gwerr"
	"github.com/tomtom215/ostium/internal/metrics"
)

// Verifier validates caller bearer tokens. HMAC-SHA256 only; any
// other signing algorithm is rejected before signature verification.
type Verifier struct {
	secret    []byte
	issuer    string
	planClaim string

	// now is the clock used for expiry checks; tests substitute a fake.
	now func() time.Time
}

// NewVerifier creates a token verifier from the auth configuration.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required for token verification")
	}
	planClaim := cfg.PlanClaim
	if planClaim == "" {
		planClaim = "plan"
	}
	return &Verifier{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.Issuer,
		planClaim: planClaim,
		now:       time.Now,
	}, nil
}

// VerifyHeader extracts and verifies the bearer token from an
// Authorization header value and returns the caller identity.
func (v *Verifier) VerifyHeader(authHeader string) (Identity, error) {
	if authHeader == "" {
		metrics.RecordAuthFailure("missing_token")
		return Identity{}, gwerr.Authentication("authorization header required")
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		metrics.RecordAuthFailure("invalid_token")
		return Identity{}, gwerr.Authentication("authorization header must use the Bearer scheme")
	}
	return v.Verify(token)
}

// Verify validates the token signature, expiry, and issuer, and
// returns the caller identity from its claims.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	claims := jwt.MapClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		reason := "invalid_token"
		if strings.Contains(err.Error(), "expired") {
			reason = "expired_token"
		}
		metrics.RecordAuthFailure(reason)
		return Identity{}, gwerr.Wrap(gwerr.KindAuthentication, "invalid bearer token", err)
	}
	if !token.Valid {
		metrics.RecordAuthFailure("invalid_token")
		return Identity{}, gwerr.Authentication("invalid bearer token")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		metrics.RecordAuthFailure("invalid_token")
		return Identity{}, gwerr.Authentication("token missing subject claim")
	}

	plan, _ := claims[v.planClaim].(string)
	return Identity{UserID: sub, Plan: strings.ToLower(plan)}, nil
}
