// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

//go:build nats

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/logging"
)

// EmbeddedServer runs NATS with JetStream inside the gateway process,
// so a single-instance deployment needs no external broker. It is a
// supervised service: Serve blocks until the context is canceled, then
// shuts the broker down.
type EmbeddedServer struct {
	srv       *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts the broker. It fails if the
// server is not accepting connections within 30 seconds.
func NewEmbeddedServer(cfg config.EventsConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "ostium-events",
		Host:       "127.0.0.1",
		Port:       -1,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		NoLog:      true,
		MaxPayload: 1 << 20,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}

	logging.Info().
		Str("client_url", ns.ClientURL()).
		Str("store_dir", cfg.StoreDir).
		Msg("embedded nats server started")

	return &EmbeddedServer{srv: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the in-process connection URL.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Serve parks until shutdown. The broker already runs on its own
// goroutines; this just ties its lifetime to the supervision tree.
func (s *EmbeddedServer) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.srv.Shutdown()
	s.srv.WaitForShutdown()
	logging.Info().Msg("embedded nats server stopped")
	return ctx.Err()
}

func (s *EmbeddedServer) String() string { return "nats-server" }

// Running reports broker health for the admin surface.
func (s *EmbeddedServer) Running() bool {
	return s.srv.Running()
}
