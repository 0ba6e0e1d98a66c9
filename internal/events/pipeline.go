// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package events

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/metrics"
	"github.com/tomtom215/ostium/internal/models"
	"github.com/tomtom215/ostium/internal/wal"
)

// publishTimeout bounds one publish attempt from the data path.
const publishTimeout = 5 * time.Second

// ErrDisabled is returned by the broker constructors in builds without
// the `nats` tag compiled in.
var ErrDisabled = errors.New("events: NATS support disabled, rebuild with -tags nats to enable the event pipeline")

// Publisher delivers serialized events to the broker. The message id
// drives JetStream deduplication, so a WAL replay of an already
// published entry is harmless.
type Publisher interface {
	Publish(ctx context.Context, subject, msgID string, data []byte) error
	Close() error
}

// Pipeline ties the WAL and the broker publisher together:
// write -> publish -> confirm. Either side may be absent: without a
// store events publish straight through, without a publisher Emit is a
// no-op.
type Pipeline struct {
	store   wal.Store
	pub     Publisher
	breaker *gobreaker.CircuitBreaker[interface{}]
}

// NewPipeline assembles the pipeline. store and pub may each be nil.
func NewPipeline(store wal.Store, pub Publisher) *Pipeline {
	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "events-publish",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("event publish breaker state change")
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	})
	return &Pipeline{store: store, pub: pub, breaker: breaker}
}

// Emit processes one completed request. It matches the proxy's emit
// callback signature and never surfaces an error: the caller's
// response has already been written.
func (p *Pipeline) Emit(m models.RequestMetric, plan, clientIP, requestID string) {
	if p == nil || p.pub == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	event := NewAccessEvent(m, plan, clientIP, requestID)

	var entryID string
	if p.store != nil {
		id, err := p.store.Write(ctx, event)
		if err != nil {
			// Keep going: an undurable publish attempt beats losing
			// the event outright.
			logging.Error().Err(err).Str("event_id", event.EventID).Msg("wal write failed for access event")
		} else {
			entryID = id
		}
	}

	err := p.publish(ctx, event)
	metrics.RecordEventPublish(err)
	if err != nil {
		if entryID != "" {
			// Safe in the WAL; the retry service replays it.
			logging.Warn().Err(err).Str("entry_id", entryID).Msg("event publish failed, buffered for retry")
			return
		}
		logging.Error().Err(err).Str("event_id", event.EventID).Msg("event publish failed, event lost")
		return
	}

	if entryID != "" {
		if err := p.store.Confirm(ctx, entryID); err != nil {
			// Already published; JetStream dedup absorbs the replay.
			logging.Warn().Err(err).Str("entry_id", entryID).Msg("wal confirm failed after publish")
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, event *AccessEvent) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.pub.Publish(ctx, event.Subject(), event.EventID, data)
	})
	return err
}

// EntryPublisher adapts the pipeline's broker side for the WAL retry
// service.
func (p *Pipeline) EntryPublisher() wal.Publisher {
	return wal.PublisherFunc(func(ctx context.Context, entry *wal.Entry) error {
		event := new(AccessEvent)
		if err := entry.UnmarshalPayload(event); err != nil {
			return err
		}
		data, err := event.Marshal()
		if err != nil {
			return err
		}
		return p.pub.Publish(ctx, event.Subject(), event.EventID, data)
	})
}

// Close shuts the publisher down.
func (p *Pipeline) Close() error {
	if p == nil || p.pub == nil {
		return nil
	}
	return p.pub.Close()
}
