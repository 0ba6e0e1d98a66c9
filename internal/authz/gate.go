// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package authz gates routes behind subscription tiers using Casbin.
// The model and policy ship embedded: tiers form a hierarchy via
// grouping rules (premium covers standard covers basic), so a route
// gated at "standard" admits standard and premium callers.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/ostium/internal/gwerr"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Gate decides whether a caller's plan satisfies a route's required
// tier. The SyncedEnforcer is safe for concurrent enforcement.
type Gate struct {
	enforcer *casbin.SyncedEnforcer
}

// NewGate builds the enforcer from the embedded model and policy.
func NewGate() (*Gate, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("load authorization model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create authorization enforcer: %w", err)
	}
	if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, fmt.Errorf("load authorization policy: %w", err)
	}

	return &Gate{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy parses the embedded policy CSV into the enforcer.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch parts[0] {
		case "p":
			if len(parts) >= 3 {
				if _, err := enforcer.AddPolicy(parts[1], parts[2]); err != nil {
					return fmt.Errorf("add policy %v: %w", parts[1:], err)
				}
			}
		case "g":
			if len(parts) >= 3 {
				if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
					return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
				}
			}
		}
	}
	return nil
}

// Allowed reports whether a caller on plan satisfies the required
// tier. An empty requirement admits everyone.
func (g *Gate) Allowed(plan, requiredTier string) (bool, error) {
	if requiredTier == "" {
		return true, nil
	}
	return g.enforcer.Enforce(plan, requiredTier)
}

// Check returns nil when the plan satisfies the tier, or an
// authorization error suitable for the response envelope.
func (g *Gate) Check(plan, requiredTier string) error {
	allowed, err := g.Allowed(plan, requiredTier)
	if err != nil {
		return gwerr.Wrap(gwerr.KindInternal, "authorization check failed", err)
	}
	if !allowed {
		return gwerr.Authorization(
			fmt.Sprintf("this content requires the %s plan or higher", requiredTier)).
			WithDetails(map[string]interface{}{
				"required_plan": requiredTier,
				"current_plan":  plan,
			})
	}
	return nil
}
