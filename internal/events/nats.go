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
	"sync"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/ostium/internal/config"
)

// NATSPublisher implements Publisher over a watermill JetStream
// publisher. The message id rides in the Nats-Msg-Id header so the
// stream's duplicate window drops WAL replays of already delivered
// events.
type NATSPublisher struct {
	publisher message.Publisher
	mu        sync.RWMutex
	closed    bool
}

// NewNATSPublisher connects to the broker at cfg.URL. The stream must
// already exist; provisioning happens in EnsureStream at startup.
func NewNATSPublisher(cfg config.EventsConfig) (*NATSPublisher, error) {
	logger := newWatermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("nats disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("nats reconnected", nil)
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create events publisher: %w", err)
	}

	return &NATSPublisher{publisher: pub}, nil
}

// Publish sends one serialized event. msgID becomes the JetStream
// deduplication id.
func (p *NATSPublisher) Publish(ctx context.Context, subject, msgID string, data []byte) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return errors.New("events: publisher is closed")
	}
	p.mu.RUnlock()

	msg := message.NewMessage(msgID, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, msgID)
	msg.SetContext(ctx)
	return p.publisher.Publish(subject, msg)
}

// Close shuts the underlying connection down.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
