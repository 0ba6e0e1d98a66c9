// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ostium/config.yaml",
	"/etc/ostium/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "OSTIUM_CONFIG"

// EnvPrefix is the prefix for all configuration environment variables:
// OSTIUM_SERVER__PORT -> server.port.
const EnvPrefix = "OSTIUM_"

// Defaults returns a Config with every field set to its default value.
// The defaults describe a self-contained local deployment fronting the
// seven platform backends on localhost ports.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            6784,
			// Default to development; set server.mode=production for
			// production deployments.
			Mode:            "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		// Admin surface is opt-in: it stays disabled until an operator
		// credential is configured.
		Admin: AdminConfig{
			Enabled:          false,
			Username:         "",
			PasswordHash:     "",
			CORSOrigins:      []string{},
			EdgeRateLimit:    300,
			AuthFailureRate:  1,
			AuthFailureBurst: 5,
		},
		Auth: AuthConfig{
			JWTSecret: "",
			Issuer:    "ostium",
			PlanClaim: "plan",
		},
		Routes: defaultRoutes(),
		Pools:  defaultPools(),
		Balancer: BalancerConfig{
			Strategy:   "round_robin",
			MaxRetries: 3,
			BaseDelay:  100 * time.Millisecond,
			Timeout:    10 * time.Second,
		},
		HealthCheck: HealthCheckConfig{
			Interval: 10 * time.Second,
			Timeout:  2 * time.Second,
			Path:     "/health",
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			ExpectedErrors:   []string{},
			Overrides:        []BreakerOverride{},
		},
		RateLimit: RateLimitConfig{
			Policies: []RateLimitPolicy{
				{Name: "default", Limit: 100, Window: time.Minute},
				{Name: "auth", Limit: 10, Window: time.Minute},
				{Name: "search", Limit: 30, Window: time.Minute},
				{Name: "payment", Limit: 5, Window: time.Minute},
				{Name: "subscription", Limit: 60, Window: time.Minute},
			},
			PlanQuotas: map[string]int{
				"basic":    60,
				"standard": 300,
				"premium":  1000,
			},
			SweepInterval: time.Minute,
		},
		Plans: PlansConfig{
			LookupPath:  "/internal/subscriptions/%s",
			DefaultPlan: "basic",
			CacheSize:   10000,
			CacheTTL:    5 * time.Minute,
			Timeout:     2 * time.Second,
		},
		Stats: StatsConfig{
			Retention:          24 * time.Hour,
			Capacity:           100000,
			Window:             time.Hour,
			CompactionInterval: time.Minute,
			FeedInterval:       5 * time.Second,
		},
		Events: EventsConfig{
			Enabled:          false,
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			Stream:           "OSTIUM_ACCESS",
			RetentionDays:    7,
			WALEnabled:       false,
			WALPath:          "/data/wal",
			WALRetryInterval: 30 * time.Second,
			WALRetention:     24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// defaultRoutes covers the seven platform backends. Auth endpoints get
// the tight "auth" policy, search the "search" policy, billing the
// "payment" policy; everything else shares "default".
func defaultRoutes() []RouteConfig {
	return []RouteConfig{
		{
			PathPrefix:      "/api/v1/auth",
			Backend:         "authentication",
			RateLimitPolicy: "auth",
			CircuitBreaker:  true,
			LoadBalancer:    true,
		},
		{
			PathPrefix:      "/api/v1/catalog",
			Backend:         "catalog",
			RateLimitPolicy: "default",
			CircuitBreaker:  true,
			LoadBalancer:    true,
		},
		{
			PathPrefix:      "/api/v1/search",
			Backend:         "catalog",
			RateLimitPolicy: "search",
			CircuitBreaker:  true,
			LoadBalancer:    true,
		},
		{
			PathPrefix:      "/api/v1/playback",
			Backend:         "playback",
			RequiresAuth:    true,
			RateLimitPolicy: "subscription",
			CircuitBreaker:  true,
			LoadBalancer:    true,
		},
		{
			PathPrefix:      "/api/v1/billing",
			Backend:         "billing",
			RequiresAuth:    true,
			RateLimitPolicy: "payment",
			CircuitBreaker:  true,
			LoadBalancer:    true,
		},
		{
			PathPrefix:      "/api/v1/social",
			Backend:         "social",
			RequiresAuth:    true,
			RateLimitPolicy: "default",
			CircuitBreaker:  true,
			LoadBalancer:    true,
		},
		{
			PathPrefix:      "/api/v1/analytics",
			Backend:         "analytics",
			RequiresAuth:    true,
			RequiredPlan:    "standard",
			RateLimitPolicy: "default",
			CircuitBreaker:  true,
			LoadBalancer:    true,
		},
		{
			PathPrefix:      "/api/v1/notifications",
			Backend:         "notification",
			RequiresAuth:    true,
			RateLimitPolicy: "default",
			CircuitBreaker:  true,
			LoadBalancer:    true,
		},
	}
}

func defaultPools() []PoolConfig {
	backends := []struct {
		name string
		port int
	}{
		{"authentication", 7101},
		{"catalog", 7102},
		{"playback", 7103},
		{"billing", 7104},
		{"social", 7105},
		{"analytics", 7106},
		{"notification", 7107},
	}
	pools := make([]PoolConfig, 0, len(backends))
	for _, b := range backends {
		pools = append(pools, PoolConfig{
			Backend: b.name,
			Endpoints: []EndpointConfig{
				{
					ID:      b.name + "-1",
					Address: fmt.Sprintf("http://127.0.0.1:%d", b.port),
					Weight:  1,
				},
			},
		})
	}
	return pools
}

// Load builds the effective configuration from layered sources:
//  1. Defaults (struct provider)
//  2. Optional YAML file
//  3. Environment variables (highest priority)
//
// The result is validated before being returned.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path
// skips the file layer.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// OSTIUM_SERVER__PORT -> server.port
	// OSTIUM_ADMIN__CORS_ORIGINS -> admin.cors_origins
	envProvider := env.Provider(EnvPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches the env override and then the default paths,
// returning the first file that exists, or empty.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf paths.
// Double underscores separate nesting levels so single underscores
// survive inside field names:
//
//	OSTIUM_SERVER__PORT            -> server.port
//	OSTIUM_RATE_LIMIT__SWEEP_INTERVAL -> rate_limit.sweep_interval
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when sourced from environment variables.
var sliceConfigPaths = []string{
	"admin.cors_origins",
	"breaker.expected_errors",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars arrive as plain strings but the
// config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
