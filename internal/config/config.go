// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package config

import (
	"time"
)

// Config holds all gateway configuration loaded from defaults, an
// optional YAML file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting (OSTIUM_ prefix)
//
// Every policy, route, and strategy is an explicit struct with defaults
// applied at construction, so the effective configuration is always
// inspectable as one concrete value.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Admin       AdminConfig       `koanf:"admin"`
	Auth        AuthConfig        `koanf:"auth"`
	Routes      []RouteConfig     `koanf:"routes"`
	Pools       []PoolConfig      `koanf:"pools"`
	Balancer    BalancerConfig    `koanf:"balancer"`
	HealthCheck HealthCheckConfig `koanf:"health_check"`
	Breaker     BreakerConfig     `koanf:"breaker"`
	RateLimit   RateLimitConfig   `koanf:"rate_limit"`
	Plans       PlansConfig       `koanf:"plans"`
	Stats       StatsConfig       `koanf:"stats"`
	Events      EventsConfig      `koanf:"events"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// Mode selects "production" or "development". Development mode
	// includes wrapped error detail in response envelopes.
	Mode string `koanf:"mode" validate:"oneof=production development"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// IsDevelopment reports whether diagnostic error detail may be exposed.
func (s ServerConfig) IsDevelopment() bool {
	return s.Mode == "development"
}

// AdminConfig configures the operator-only administrative surface.
// The admin credential is a static username plus a bcrypt hash, never
// a caller JWT.
type AdminConfig struct {
	Enabled bool `koanf:"enabled"`

	Username string `koanf:"username"`
	// PasswordHash is the bcrypt hash of the operator password.
	// Generate with: htpasswd -bnBC 12 "" <password> | tr -d ':'
	PasswordHash string `koanf:"password_hash"`

	CORSOrigins []string `koanf:"cors_origins"`

	// EdgeRateLimit bounds requests per minute per client IP across
	// the admin subtree, independent of the policy rate limiter.
	EdgeRateLimit int `koanf:"edge_rate_limit" validate:"min=0"`

	// AuthFailureRate and AuthFailureBurst bound credential-guessing
	// attempts per client IP (token bucket).
	AuthFailureRate  float64 `koanf:"auth_failure_rate"`
	AuthFailureBurst int     `koanf:"auth_failure_burst"`
}

// AuthConfig configures caller identity extraction. Token issuance and
// full validation flows belong to the authentication backend; the
// gateway only verifies the HMAC signature and reads claims.
type AuthConfig struct {
	// JWTSecret is the shared HMAC signing secret. Required whenever a
	// route sets requires_auth.
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`

	// PlanClaim is the JWT claim holding the caller's subscription
	// plan ("basic", "standard", "premium").
	PlanClaim string `koanf:"plan_claim"`
}

// RouteConfig is one static inbound route. Routes are loaded once at
// startup and immutable thereafter.
type RouteConfig struct {
	// PathPrefix matches inbound paths; the longest matching prefix
	// wins.
	PathPrefix string `koanf:"path_prefix" validate:"required,startswith=/"`

	// Backend names the pool this route forwards to.
	Backend string `koanf:"backend" validate:"required"`

	// StripPrefix removes the matched prefix before forwarding;
	// AddPrefix prepends a replacement.
	StripPrefix bool   `koanf:"strip_prefix"`
	AddPrefix   string `koanf:"add_prefix"`

	RequiresAuth bool `koanf:"requires_auth"`

	// RequiredPlan gates the route behind a minimum subscription tier.
	// Empty means any authenticated caller.
	RequiredPlan string `koanf:"required_plan" validate:"omitempty,oneof=basic standard premium"`

	// RateLimitPolicy names the policy applied to this route. Empty
	// disables rate limiting for the route.
	RateLimitPolicy string `koanf:"rate_limit_policy"`

	CircuitBreaker bool `koanf:"circuit_breaker"`
	LoadBalancer   bool `koanf:"load_balancer"`

	// Timeout bounds each proxied call attempt. Zero uses the
	// balancer default.
	Timeout time.Duration `koanf:"timeout"`
}

// PoolConfig declares the endpoints behind one backend name.
type PoolConfig struct {
	Backend   string           `koanf:"backend" validate:"required"`
	Endpoints []EndpointConfig `koanf:"endpoints" validate:"min=1,dive"`

	// Strategy overrides the global balancer strategy for this pool.
	Strategy string `koanf:"strategy" validate:"omitempty,oneof=round_robin least_connections weighted random"`
}

// EndpointConfig declares one endpoint of a pool.
type EndpointConfig struct {
	ID      string `koanf:"id"`
	Address string `koanf:"address" validate:"required,url"`
	Weight  int    `koanf:"weight" validate:"min=1,max=1000"`
}

// BalancerConfig holds load balancing and retry defaults.
type BalancerConfig struct {
	Strategy   string        `koanf:"strategy" validate:"oneof=round_robin least_connections weighted random"`
	MaxRetries int           `koanf:"max_retries" validate:"min=0,max=10"`
	BaseDelay  time.Duration `koanf:"base_delay"`

	// Timeout is the default per-attempt bound when a route does not
	// set its own.
	Timeout time.Duration `koanf:"timeout"`
}

// HealthCheckConfig drives the background prober.
type HealthCheckConfig struct {
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`
	Path     string        `koanf:"path" validate:"startswith=/"`
}

// BreakerConfig holds circuit breaker defaults and per-backend
// overrides.
type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold" validate:"min=1"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`

	// ExpectedErrors lists substrings of error text that indicate a
	// caller-side problem rather than backend unhealthiness; matching
	// failures do not count toward the threshold.
	ExpectedErrors []string `koanf:"expected_errors"`

	Overrides []BreakerOverride `koanf:"overrides" validate:"dive"`
}

// BreakerOverride tunes one backend's breaker away from the defaults.
type BreakerOverride struct {
	Backend          string        `koanf:"backend" validate:"required"`
	FailureThreshold int           `koanf:"failure_threshold" validate:"min=1"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`
}

// RateLimitConfig holds the named policy table and subscription plan
// quotas.
type RateLimitConfig struct {
	Policies []RateLimitPolicy `koanf:"policies" validate:"dive"`

	// PlanQuotas maps subscription plan names to per-window request
	// limits for the "subscription" policy.
	PlanQuotas map[string]int `koanf:"plan_quotas"`

	// SweepInterval drives the background removal of expired window
	// counters. Correctness does not depend on the sweep; stale
	// windows also reset lazily on the next check.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// RateLimitPolicy is one named fixed-window quota policy.
type RateLimitPolicy struct {
	Name   string        `koanf:"name" validate:"required"`
	Limit  int           `koanf:"limit" validate:"min=1"`
	Window time.Duration `koanf:"window"`
}

// PlansConfig configures subscription plan resolution for callers
// whose tokens carry no plan claim.
type PlansConfig struct {
	// LookupPath is the billing backend path queried per user; %s is
	// replaced with the user ID.
	LookupPath string `koanf:"lookup_path"`

	// DefaultPlan is assigned when every resolver fails.
	DefaultPlan string `koanf:"default_plan" validate:"oneof=basic standard premium"`

	CacheSize int           `koanf:"cache_size" validate:"min=1"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`

	Timeout time.Duration `koanf:"timeout"`
}

// StatsConfig bounds the in-memory request metric history.
type StatsConfig struct {
	// Retention is how long metrics are kept before compaction drops
	// them.
	Retention time.Duration `koanf:"retention"`

	// Capacity caps the total in-memory metric count; the oldest
	// entries are evicted first.
	Capacity int `koanf:"capacity" validate:"min=100"`

	// Window is the default aggregation window for summaries.
	Window time.Duration `koanf:"window"`

	CompactionInterval time.Duration `koanf:"compaction_interval"`

	// FeedInterval is how often the live ops feed pushes a stats
	// snapshot to connected websocket clients.
	FeedInterval time.Duration `koanf:"feed_interval"`
}

// EventsConfig configures the optional access event pipeline.
type EventsConfig struct {
	Enabled bool `koanf:"enabled"`

	// NATS connection and embedded server settings. The embedded
	// JetStream server makes the gateway self-contained.
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	Stream         string `koanf:"stream"`

	RetentionDays int `koanf:"retention_days" validate:"min=1"`

	// WAL settings: durable buffer so events survive broker outages.
	WALEnabled       bool          `koanf:"wal_enabled"`
	WALPath          string        `koanf:"wal_path"`
	WALRetryInterval time.Duration `koanf:"wal_retry_interval"`
	WALRetention     time.Duration `koanf:"wal_retention"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Plan ordering for tier comparison, lowest first.
var planOrder = map[string]int{
	"basic":    1,
	"standard": 2,
	"premium":  3,
}

// PlanAllows reports whether a caller on plan `have` satisfies a route
// requiring plan `want`. Unknown plans never satisfy a requirement.
func PlanAllows(have, want string) bool {
	if want == "" {
		return true
	}
	h, ok := planOrder[have]
	if !ok {
		return false
	}
	w, ok := planOrder[want]
	if !ok {
		return false
	}
	return h >= w
}

// BreakerFor returns the effective breaker settings for a backend,
// applying any override on top of the defaults.
func (c BreakerConfig) BreakerFor(backend string) (threshold int, resetTimeout time.Duration) {
	threshold = c.FailureThreshold
	resetTimeout = c.ResetTimeout
	for _, o := range c.Overrides {
		if o.Backend != backend {
			continue
		}
		if o.FailureThreshold > 0 {
			threshold = o.FailureThreshold
		}
		if o.ResetTimeout > 0 {
			resetTimeout = o.ResetTimeout
		}
	}
	return threshold, resetTimeout
}

// Policy returns the named rate limit policy and whether it exists.
func (c RateLimitConfig) Policy(name string) (RateLimitPolicy, bool) {
	for _, p := range c.Policies {
		if p.Name == name {
			return p, true
		}
	}
	return RateLimitPolicy{}, false
}

// PoolFor returns the pool config for a backend name and whether it
// exists.
func (c *Config) PoolFor(backend string) (PoolConfig, bool) {
	for _, p := range c.Pools {
		if p.Backend == backend {
			return p, true
		}
	}
	return PoolConfig{}, false
}
