// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

//go:build !nats

package events

import (
	"context"

	"github.com/tomtom215/ostium/internal/config"
)

// NATSPublisher is unavailable without the `nats` build tag.
type NATSPublisher struct{}

// NewNATSPublisher fails with a build hint.
func NewNATSPublisher(cfg config.EventsConfig) (*NATSPublisher, error) {
	return nil, ErrDisabled
}

func (p *NATSPublisher) Publish(ctx context.Context, subject, msgID string, data []byte) error {
	return ErrDisabled
}

func (p *NATSPublisher) Close() error { return nil }

// EmbeddedServer is unavailable without the `nats` build tag.
type EmbeddedServer struct{}

// NewEmbeddedServer fails with a build hint.
func NewEmbeddedServer(cfg config.EventsConfig) (*EmbeddedServer, error) {
	return nil, ErrDisabled
}

func (s *EmbeddedServer) ClientURL() string { return "" }

func (s *EmbeddedServer) Serve(ctx context.Context) error { return ErrDisabled }

func (s *EmbeddedServer) String() string { return "nats-server" }

func (s *EmbeddedServer) Running() bool { return false }

// EnsureStream fails with a build hint.
func EnsureStream(ctx context.Context, cfg config.EventsConfig) error {
	return ErrDisabled
}
