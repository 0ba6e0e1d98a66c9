// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package gateway assembles the process from its parts: pools and
// balancers from config, the breaker manager with its listeners, the
// proxy data path, the admin surface, the optional event pipeline,
// and the supervision tree that runs everything.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/ostium/internal/api"
	"github.com/tomtom215/ostium/internal/auth"
	"github.com/tomtom215/ostium/internal/authz"
	"github.com/tomtom215/ostium/internal/balancer"
	"github.com/tomtom215/ostium/internal/breaker"
	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/events"
	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/plans"
	"github.com/tomtom215/ostium/internal/proxy"
	"github.com/tomtom215/ostium/internal/ratelimit"
	"github.com/tomtom215/ostium/internal/stats"
	"github.com/tomtom215/ostium/internal/supervisor"
	"github.com/tomtom215/ostium/internal/supervisor/services"
	"github.com/tomtom215/ostium/internal/upstream"
	"github.com/tomtom215/ostium/internal/wal"
	"github.com/tomtom215/ostium/internal/websocket"
)

// streamSetupTimeout bounds JetStream stream provisioning at startup.
const streamSetupTimeout = 30 * time.Second

// Gateway owns every long-lived component. Construction wires the
// parts together; Run hands them to the supervision tree.
type Gateway struct {
	cfg *config.Config

	pools     map[string]*upstream.Pool
	balancers map[string]*balancer.Balancer
	breakers  *breaker.Manager
	limiter   *ratelimit.Limiter
	agg       *stats.Aggregator
	prober    *upstream.Prober
	hub       *websocket.Hub
	pipeline  *events.Pipeline
	walStore  wal.Store

	tree    *supervisor.Tree
	handler http.Handler
	server  *http.Server
}

// New builds the gateway from a validated config. Components that are
// disabled by config (admin surface, event pipeline) are left nil and
// the rest of the wiring routes around them.
func New(cfg *config.Config) (*Gateway, error) {
	api.SetDevelopmentMode(cfg.Server.IsDevelopment())

	g := &Gateway{
		cfg:  cfg,
		tree: supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig()),
	}

	if err := g.buildPools(); err != nil {
		return nil, err
	}

	g.hub = websocket.NewHub()
	g.breakers = breaker.NewManager(cfg.Breaker,
		breaker.LogListener{}, breaker.MetricsListener{}, g.hub)
	g.limiter = ratelimit.New(cfg.RateLimit)
	g.agg = stats.NewAggregator(cfg.Stats)

	pools := make([]*upstream.Pool, 0, len(g.pools))
	for _, p := range g.pools {
		pools = append(pools, p)
	}
	g.prober = upstream.NewProber(cfg.HealthCheck, pools)

	if err := g.wireEvents(); err != nil {
		return nil, err
	}

	handler, err := g.buildHandler()
	if err != nil {
		return nil, err
	}
	g.handler = handler

	g.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.addServices()
	return g, nil
}

// buildPools materializes the instance registries and their balancers
// from the static pool config.
func (g *Gateway) buildPools() error {
	g.pools = make(map[string]*upstream.Pool, len(g.cfg.Pools))
	g.balancers = make(map[string]*balancer.Balancer, len(g.cfg.Pools))

	for _, pc := range g.cfg.Pools {
		pool := upstream.NewPool(pc.Backend)
		for _, ec := range pc.Endpoints {
			if _, err := pool.Add(ec.ID, ec.Address, ec.Weight); err != nil {
				return fmt.Errorf("pool %s: %w", pc.Backend, err)
			}
		}
		strategy := pc.Strategy
		if strategy == "" {
			strategy = g.cfg.Balancer.Strategy
		}
		g.pools[pc.Backend] = pool
		g.balancers[pc.Backend] = balancer.New(pool, strategy, g.cfg.Balancer)
	}
	return nil
}

// wireEvents sets up the access event pipeline when enabled: the
// embedded broker, the JetStream stream, the publisher, and the
// durable WAL buffer with its retry and compaction services. Builds
// without the nats or wal tags degrade to warnings instead of errors
// so the proxy path never depends on optional infrastructure.
func (g *Gateway) wireEvents() error {
	ecfg := g.cfg.Events
	if !ecfg.Enabled {
		return nil
	}

	if ecfg.EmbeddedServer {
		srv, err := events.NewEmbeddedServer(ecfg)
		if err != nil {
			if errors.Is(err, events.ErrDisabled) {
				logging.Warn().Err(err).Msg("event pipeline disabled in this build")
				return nil
			}
			return fmt.Errorf("starting embedded broker: %w", err)
		}
		g.tree.AddInfraService(srv)
		ecfg.URL = srv.ClientURL()
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamSetupTimeout)
	defer cancel()
	if err := events.EnsureStream(ctx, ecfg); err != nil {
		if errors.Is(err, events.ErrDisabled) {
			logging.Warn().Err(err).Msg("event pipeline disabled in this build")
			return nil
		}
		return fmt.Errorf("provisioning event stream: %w", err)
	}

	pub, err := events.NewNATSPublisher(ecfg)
	if err != nil {
		return fmt.Errorf("connecting event publisher: %w", err)
	}

	var store wal.Store
	if ecfg.WALEnabled {
		store, err = wal.Open(wal.Options{
			Path:      ecfg.WALPath,
			Retention: ecfg.WALRetention,
		})
		switch {
		case errors.Is(err, wal.ErrDisabled):
			logging.Warn().Err(err).Msg("event WAL disabled in this build, publishing without durable buffer")
			store = nil
		case err != nil:
			return fmt.Errorf("opening event WAL: %w", err)
		}
	}

	g.pipeline = events.NewPipeline(store, pub)
	g.walStore = store
	if store != nil {
		g.tree.AddInfraService(wal.NewRetry(store, g.pipeline.EntryPublisher(), ecfg.WALRetryInterval, 0))
		g.tree.AddInfraService(wal.NewCompactor(store, 0))
	}
	return nil
}

// buildHandler assembles the data path and the gateway-owned surfaces
// into the top-level router.
func (g *Gateway) buildHandler() (http.Handler, error) {
	var verifier *auth.Verifier
	if g.cfg.Auth.JWTSecret != "" {
		v, err := auth.NewVerifier(g.cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("building token verifier: %w", err)
		}
		verifier = v
	}

	gate, err := authz.NewGate()
	if err != nil {
		return nil, fmt.Errorf("building plan gate: %w", err)
	}

	// The billing balancer doubles as the plan lookup executor; plan
	// resolution shares its endpoints but not its circuit breaker.
	var exec plans.Executor
	if b, ok := g.balancers["billing"]; ok {
		exec = b
	}
	resolver := plans.NewDefault(exec, g.cfg.Plans)

	table := proxy.NewTable(g.cfg.Routes)
	p := proxy.New(proxy.Options{
		Table:     table,
		Balancers: g.balancers,
		Breakers:  g.breakers,
		Limiter:   g.limiter,
		Verifier:  verifier,
		Gate:      gate,
		Resolver:  resolver,
		Stats:     g.agg,
		Config:    g.cfg,
		Emit:      g.pipeline.Emit,
	})

	opts := api.RouterOptions{
		Proxy:    p,
		RouteFor: p.RouteFor,
		Pools:    g.pools,
	}

	if g.cfg.Admin.Enabled {
		operator, err := auth.NewOperator(g.cfg.Admin)
		if err != nil {
			return nil, fmt.Errorf("building operator credential: %w", err)
		}
		opts.Operator = operator
		opts.FailureLimiter = auth.NewFailureLimiter(
			g.cfg.Admin.AuthFailureRate, g.cfg.Admin.AuthFailureBurst)
		opts.AdminConfig = g.cfg.Admin
		opts.Admin = api.NewAdmin(api.AdminOptions{
			Stats:         g.agg,
			Breakers:      g.breakers,
			Balancers:     g.balancers,
			Pools:         g.pools,
			Limiter:       g.limiter,
			Prober:        g.prober,
			DefaultWindow: g.cfg.Stats.Window,
		})
		opts.Live = websocket.Handler(g.hub)
	}

	return api.NewRouter(opts), nil
}

// addServices registers the long-running services on the tree. Infra
// services were already added by wireEvents; this covers the core
// loop services and the HTTP edge.
func (g *Gateway) addServices() {
	g.tree.AddInfraService(ratelimit.NewSweeper(g.limiter, g.cfg.RateLimit.SweepInterval))

	g.tree.AddCoreService(g.prober)
	g.tree.AddCoreService(stats.NewCompactor(g.agg, g.cfg.Stats.CompactionInterval))
	g.tree.AddCoreService(g.hub)
	g.tree.AddCoreService(websocket.NewFeed(g.hub, g.agg, g.cfg.Stats))

	g.tree.AddEdgeService(services.NewHTTPServerService(g.server, g.cfg.Server.ShutdownTimeout))
}

// Handler exposes the assembled router, primarily for tests.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Addr returns the listen address of the HTTP edge.
func (g *Gateway) Addr() string {
	return g.server.Addr
}

// Run serves the supervision tree until ctx is canceled, then releases
// the event pipeline's broker connection and WAL handle.
func (g *Gateway) Run(ctx context.Context) error {
	logging.Info().
		Str("component", "gateway").
		Str("addr", g.server.Addr).
		Int("routes", len(g.cfg.Routes)).
		Int("pools", len(g.pools)).
		Msg("gateway starting")

	err := g.tree.Serve(ctx)

	if closeErr := g.pipeline.Close(); closeErr != nil {
		logging.Error().Err(closeErr).Msg("closing event pipeline")
	}
	if g.walStore != nil {
		if closeErr := g.walStore.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("closing event WAL")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
