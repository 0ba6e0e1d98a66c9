// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus the cross-field rules the tags
// cannot express. It returns the first violation found.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := errors.As(err, &verrs); ok && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid config field %s: failed %q validation", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := c.validateRoutes(); err != nil {
		return err
	}
	if err := c.validatePools(); err != nil {
		return err
	}
	if err := c.validateDurations(); err != nil {
		return err
	}
	if c.Admin.Enabled && (c.Admin.Username == "" || c.Admin.PasswordHash == "") {
		return fmt.Errorf("admin surface enabled but admin.username or admin.password_hash is empty")
	}
	return nil
}

func (c *Config) validateRoutes() error {
	seen := make(map[string]struct{}, len(c.Routes))
	needsAuth := false
	for i, r := range c.Routes {
		if !strings.HasPrefix(r.PathPrefix, "/") {
			return fmt.Errorf("route %d: path_prefix %q must start with /", i, r.PathPrefix)
		}
		if _, dup := seen[r.PathPrefix]; dup {
			return fmt.Errorf("route %d: duplicate path_prefix %q", i, r.PathPrefix)
		}
		seen[r.PathPrefix] = struct{}{}

		if _, ok := c.PoolFor(r.Backend); !ok {
			return fmt.Errorf("route %q references unknown backend pool %q", r.PathPrefix, r.Backend)
		}
		if r.RateLimitPolicy != "" {
			if _, ok := c.RateLimit.Policy(r.RateLimitPolicy); !ok {
				return fmt.Errorf("route %q references unknown rate limit policy %q", r.PathPrefix, r.RateLimitPolicy)
			}
		}
		if r.RequiredPlan != "" && !r.RequiresAuth {
			return fmt.Errorf("route %q sets required_plan but not requires_auth", r.PathPrefix)
		}
		if r.RequiresAuth {
			needsAuth = true
		}
	}
	// Refuse to start in production with authenticated routes and no
	// signing secret. Development mode may start without one; those
	// routes then reject every caller.
	if needsAuth && c.Auth.JWTSecret == "" && !c.Server.IsDevelopment() {
		return fmt.Errorf("a route sets requires_auth but auth.jwt_secret is empty; " +
			"generate one with: openssl rand -base64 32")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	return nil
}

func (c *Config) validatePools() error {
	seen := make(map[string]struct{}, len(c.Pools))
	for _, p := range c.Pools {
		if _, dup := seen[p.Backend]; dup {
			return fmt.Errorf("duplicate pool for backend %q", p.Backend)
		}
		seen[p.Backend] = struct{}{}

		ids := make(map[string]struct{}, len(p.Endpoints))
		for _, e := range p.Endpoints {
			u, err := url.Parse(e.Address)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("pool %q: endpoint address %q is not an absolute URL", p.Backend, e.Address)
			}
			if e.ID != "" {
				if _, dup := ids[e.ID]; dup {
					return fmt.Errorf("pool %q: duplicate endpoint id %q", p.Backend, e.ID)
				}
				ids[e.ID] = struct{}{}
			}
		}
	}
	for _, o := range c.Breaker.Overrides {
		if _, ok := c.PoolFor(o.Backend); !ok {
			return fmt.Errorf("breaker override references unknown backend pool %q", o.Backend)
		}
	}
	return nil
}

func (c *Config) validateDurations() error {
	if c.Balancer.BaseDelay <= 0 {
		return fmt.Errorf("balancer.base_delay must be positive")
	}
	if c.Balancer.Timeout <= 0 {
		return fmt.Errorf("balancer.timeout must be positive")
	}
	if c.HealthCheck.Interval <= 0 || c.HealthCheck.Timeout <= 0 {
		return fmt.Errorf("health_check.interval and health_check.timeout must be positive")
	}
	if c.Breaker.ResetTimeout <= 0 {
		return fmt.Errorf("breaker.reset_timeout must be positive")
	}
	for _, p := range c.RateLimit.Policies {
		if p.Window <= 0 {
			return fmt.Errorf("rate limit policy %q: window must be positive", p.Name)
		}
	}
	if c.Stats.Retention <= 0 || c.Stats.Window <= 0 || c.Stats.CompactionInterval <= 0 {
		return fmt.Errorf("stats.retention, stats.window, and stats.compaction_interval must be positive")
	}
	return nil
}
