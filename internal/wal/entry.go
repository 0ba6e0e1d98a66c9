// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package wal is the durable buffer in front of the access event
// broker. Events are persisted before publish so a broker outage or a
// process crash loses nothing: unconfirmed entries are replayed by the
// retry service, confirmed entries are reclaimed by compaction.
//
// The BadgerDB-backed store compiles only with the `wal` build tag;
// without it Open returns a build-hint error and the event pipeline
// runs without durability.
package wal

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// Entry is one buffered event with its delivery bookkeeping.
type Entry struct {
	ID            string          `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	Confirmed     bool            `json:"confirmed"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
}

// UnmarshalPayload deserializes the payload into v.
func (e *Entry) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Stats is a point-in-time view of the store for the admin surface.
type Stats struct {
	PendingCount   int64     `json:"pending_count"`
	ConfirmedCount int64     `json:"confirmed_count"`
	TotalWrites    int64     `json:"total_writes"`
	TotalConfirms  int64     `json:"total_confirms"`
	TotalReplays   int64     `json:"total_replays"`
	LastCompaction time.Time `json:"last_compaction"`
	DBSizeBytes    int64     `json:"db_size_bytes"`
}

// Store is the durability contract the event pipeline and its
// background services program against.
type Store interface {
	// Write persists an event before publish and returns the entry id
	// used to confirm it later.
	Write(ctx context.Context, event interface{}) (entryID string, err error)

	// Confirm marks an entry as delivered; compaction reclaims it.
	Confirm(ctx context.Context, entryID string) error

	// Pending returns all unconfirmed entries, oldest first.
	Pending(ctx context.Context) ([]*Entry, error)

	// RecordAttempt bumps an entry's attempt count after a failed
	// publish.
	RecordAttempt(ctx context.Context, entryID, lastError string) error

	// Drop removes an entry without confirming it. Used when an entry
	// exhausts its publish attempts.
	Drop(ctx context.Context, entryID string) error

	// Compact removes confirmed and expired entries and reclaims
	// storage. Returns the number of entries removed.
	Compact(ctx context.Context) (removed int, err error)

	Stats() Stats
	Close() error
}

// Publisher delivers one buffered entry to the broker. The retry
// service uses it to replay pending entries.
type Publisher interface {
	PublishEntry(ctx context.Context, entry *Entry) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, entry *Entry) error

// PublishEntry implements Publisher.
func (f PublisherFunc) PublishEntry(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}

var (
	ErrClosed        = errors.New("wal: store is closed")
	ErrNilEvent      = errors.New("wal: event cannot be nil")
	ErrEmptyEntryID  = errors.New("wal: entry id cannot be empty")
	ErrEntryNotFound = errors.New("wal: entry not found")

	// ErrDisabled is returned by Open in builds without the durable
	// buffer compiled in.
	ErrDisabled = errors.New("wal: disabled, rebuild with -tags wal to enable the durable event buffer")
)

// Options configures the store.
type Options struct {
	// Path is the on-disk database directory.
	Path string

	// SyncWrites forces an fsync per write; durability over latency.
	SyncWrites bool

	// Retention is how long any entry may live before compaction
	// drops it regardless of state.
	Retention time.Duration

	// MaxAttempts caps publish retries per entry; entries beyond it
	// are dropped by the retry service.
	MaxAttempts int
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.Retention <= 0 {
		o.Retention = 24 * time.Hour
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	return o
}
