// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

//go:build wal

package wal

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	store, err := Open(Options{
		Path:        t.TempDir(),
		SyncWrites:  false,
		Retention:   time.Hour,
		MaxAttempts: 5,
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerWriteConfirmLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Write(ctx, map[string]string{"path": "/api/v1/videos"})
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if id == "" {
		t.Fatal("Write() returned empty entry id")
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("pending = %v, want one entry %s", pending, id)
	}

	var payload map[string]string
	if err := pending[0].UnmarshalPayload(&payload); err != nil {
		t.Fatalf("UnmarshalPayload() error: %v", err)
	}
	if payload["path"] != "/api/v1/videos" {
		t.Fatalf("payload = %v", payload)
	}

	if err := store.Confirm(ctx, id); err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}

	pending, err = store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after confirm = %d entries, want 0", len(pending))
	}

	st := store.Stats()
	if st.TotalWrites != 1 || st.TotalConfirms != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if st.ConfirmedCount != 1 {
		t.Fatalf("confirmed count = %d, want 1 awaiting compaction", st.ConfirmedCount)
	}
}

func TestBadgerConfirmUnknownEntry(t *testing.T) {
	store := openTestStore(t)
	if err := store.Confirm(context.Background(), "missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("Confirm(missing) = %v, want ErrEntryNotFound", err)
	}
	if err := store.Confirm(context.Background(), ""); !errors.Is(err, ErrEmptyEntryID) {
		t.Fatalf("Confirm(\"\") = %v, want ErrEmptyEntryID", err)
	}
}

func TestBadgerNilEventRejected(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Write(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("Write(nil) = %v, want ErrNilEvent", err)
	}
}

func TestBadgerRecordAttempt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, _ := store.Write(ctx, "event")
	if err := store.RecordAttempt(ctx, id, "connection refused"); err != nil {
		t.Fatalf("RecordAttempt() error: %v", err)
	}
	if err := store.RecordAttempt(ctx, id, "connection refused"); err != nil {
		t.Fatalf("RecordAttempt() error: %v", err)
	}

	pending, _ := store.Pending(ctx)
	if len(pending) != 1 {
		t.Fatalf("pending = %d entries", len(pending))
	}
	if pending[0].Attempts != 2 || pending[0].LastError != "connection refused" {
		t.Fatalf("entry = %+v", pending[0])
	}
}

func TestBadgerCompactReclaimsConfirmed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	confirmed, _ := store.Write(ctx, "done")
	store.Write(ctx, "still-pending")
	if err := store.Confirm(ctx, confirmed); err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}

	removed, err := store.Compact(ctx)
	if err != nil {
		t.Fatalf("Compact() error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Compact() removed %d, want 1", removed)
	}

	st := store.Stats()
	if st.ConfirmedCount != 0 {
		t.Fatalf("confirmed count = %d after compaction", st.ConfirmedCount)
	}
	if st.PendingCount != 1 {
		t.Fatalf("pending count = %d, want 1", st.PendingCount)
	}
}

func TestBadgerDrop(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, _ := store.Write(ctx, "poison")
	if err := store.Drop(ctx, id); err != nil {
		t.Fatalf("Drop() error: %v", err)
	}
	pending, _ := store.Pending(ctx)
	if len(pending) != 0 {
		t.Fatalf("pending = %d entries after drop", len(pending))
	}
}

func TestBadgerClosedStoreRejectsOperations(t *testing.T) {
	store := openTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := store.Write(context.Background(), "event"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write() after close = %v, want ErrClosed", err)
	}
	if _, err := store.Pending(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Pending() after close = %v, want ErrClosed", err)
	}
}

func TestBadgerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(Options{Path: dir, Retention: time.Hour})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	id, err := store.Write(ctx, "durable")
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := Open(Options{Path: dir, Retention: time.Hour})
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	pending, err := reopened.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("pending after reopen = %v, want entry %s", pending, id)
	}
}
