// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package plans resolves a caller's subscription plan. Resolution is
// chained: the JWT plan claim when present, then a cached billing
// backend lookup, then a static default so a billing outage degrades
// quota rather than availability.
package plans

import (
	"context"
	"errors"

	"github.com/tomtom215/ostium/internal/logging"
)

// errNoPlan signals that a resolver has no answer for this subject,
// as opposed to a lookup failure worth logging.
var errNoPlan = errors.New("no plan for subject")

// Subject identifies the caller for plan resolution.
type Subject struct {
	// UserID is the authenticated caller's subject claim.
	UserID string

	// ClaimPlan is the plan claim carried in the token, empty when the
	// token has none.
	ClaimPlan string
}

// Resolver maps a caller to a subscription plan name.
type Resolver interface {
	// Resolve returns the caller's plan. An error means this resolver
	// could not determine the plan; callers fall through to the next
	// resolver in the chain.
	Resolve(ctx context.Context, sub Subject) (string, error)
}

// knownPlans guards against arbitrary strings from tokens or backends
// becoming quota keys.
var knownPlans = map[string]bool{
	"basic":    true,
	"standard": true,
	"premium":  true,
}

// Known reports whether plan is a recognized subscription tier.
func Known(plan string) bool {
	return knownPlans[plan]
}

// ClaimsResolver reads the plan directly from the token claim.
type ClaimsResolver struct{}

func (ClaimsResolver) Resolve(_ context.Context, sub Subject) (string, error) {
	if !Known(sub.ClaimPlan) {
		return "", errNoPlan
	}
	return sub.ClaimPlan, nil
}

// StaticResolver always returns a fixed plan. It terminates the chain.
type StaticResolver struct {
	Plan string
}

func (s StaticResolver) Resolve(context.Context, Subject) (string, error) {
	return s.Plan, nil
}

// Chain tries each resolver in order and returns the first success.
// The last resolver should be infallible (a StaticResolver).
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, sub Subject) (string, error) {
	var lastErr error
	for _, r := range c {
		plan, err := r.Resolve(ctx, sub)
		if err == nil {
			return plan, nil
		}
		if !errors.Is(err, errNoPlan) {
			logging.Debug().Str("user_id", sub.UserID).Err(err).Msg("plan resolver failed, trying next")
		}
		lastErr = err
	}
	return "", lastErr
}
