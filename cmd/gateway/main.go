// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package main is the Ostium entry point.
//
// Ostium is a self-hosted API gateway for media streaming platforms:
// it routes caller traffic to backend pools with health-aware load
// balancing, per-backend circuit breaking, subscription-plan aware
// rate limiting, and an operator admin surface with live statistics.
//
// Startup order:
//
//  1. Configuration: Koanf v2, layered defaults / YAML file /
//     OSTIUM_* environment variables, validated before anything runs.
//  2. Logging: zerolog, configured from the logging section.
//  3. Gateway assembly: pools, balancers, breakers, rate limiter,
//     stats aggregator, proxy, admin surface, optional NATS event
//     pipeline with its write-ahead log.
//  4. Supervision: a suture tree (infra, core, edge layers) runs every
//     long-lived component and restarts what fails.
//
// The process stops cleanly on SIGINT or SIGTERM: the HTTP edge drains
// in-flight requests, then core and infra services shut down.
//
// Build tags:
//   - nats: compile in the embedded NATS/JetStream broker and the
//     access event publisher.
//   - wal: compile in the BadgerDB write-ahead log that buffers events
//     across broker outages.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/gateway"
	"github.com/tomtom215/ostium/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Info().
		Str("mode", cfg.Server.Mode).
		Int("routes", len(cfg.Routes)).
		Int("pools", len(cfg.Pools)).
		Bool("admin", cfg.Admin.Enabled).
		Bool("events", cfg.Events.Enabled).
		Msg("configuration loaded")

	g, err := gateway.New(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to assemble gateway")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := g.Run(ctx); err != nil {
		logging.Error().Err(err).Msg("gateway exited with error")
		os.Exit(1)
	}
	logging.Info().Msg("gateway stopped")
}
