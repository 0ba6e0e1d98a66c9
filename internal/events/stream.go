// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

//go:build nats

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/ostium/internal/config"
	"github.com/tomtom215/ostium/internal/logging"
)

// EnsureStream provisions the access event stream, idempotently:
// create when missing, update the configuration when present. It must
// run before the publisher starts so every publish lands in a durable
// stream.
func EnsureStream(ctx context.Context, cfg config.EventsConfig) error {
	nc, err := natsgo.Connect(cfg.URL)
	if err != nil {
		return fmt.Errorf("connect for stream provisioning: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:        cfg.Stream,
		Subjects:    []string{"access.>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	if _, err := js.Stream(ctx, cfg.Stream); err == nil {
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.Stream, err)
		}
		logging.Info().Str("stream", cfg.Stream).Msg("access event stream updated")
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("check stream %s: %w", cfg.Stream, err)
	}

	if _, err := js.CreateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}
	logging.Info().Str("stream", cfg.Stream).Int("retention_days", cfg.RetentionDays).
		Msg("access event stream created")
	return nil
}
