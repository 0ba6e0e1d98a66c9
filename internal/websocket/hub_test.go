// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/ostium/internal/breaker"
)

// newTestClient builds a hub client with no connection; only the send
// channel matters for hub-level tests.
func newTestClient(h *Hub, buffer int) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  h,
		send: make(chan Message, buffer),
	}
}

// startHub runs the hub loop and returns a stop function that waits
// for Serve to exit.
func startHub(t *testing.T, h *Hub) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			if err != context.Canceled {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("hub did not stop")
		}
	}
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), want)
}

func TestHubRegisterUnregister(t *testing.T) {
	h := NewHub()
	stop := startHub(t, h)
	defer stop()

	c := newTestClient(h, 4)
	h.Register <- c
	waitForClients(t, h, 1)

	h.Unregister <- c
	waitForClients(t, h, 0)

	// Channel is closed on unregister.
	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	h := NewHub()
	stop := startHub(t, h)
	defer stop()

	a := newTestClient(h, 4)
	b := newTestClient(h, 4)
	h.Register <- a
	h.Register <- b
	waitForClients(t, h, 2)

	h.Broadcast(MessageTypeStatsUpdate, map[string]int{"n": 1})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if msg.Type != MessageTypeStatsUpdate {
				t.Fatalf("message type = %q, want stats_update", msg.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub()
	stop := startHub(t, h)
	defer stop()

	slow := newTestClient(h, 1)
	fast := newTestClient(h, 8)
	h.Register <- slow
	h.Register <- fast
	waitForClients(t, h, 2)

	// The slow client's single-slot buffer fills on the first frame;
	// the second frame finds it full and drops the client.
	h.Broadcast(MessageTypeStatsUpdate, 1)
	h.Broadcast(MessageTypeStatsUpdate, 2)
	waitForClients(t, h, 1)

	select {
	case msg := <-fast.send:
		_ = msg
	case <-time.After(time.Second):
		t.Fatal("surviving client lost the broadcast")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()

	c := newTestClient(h, 4)
	h.Register <- c
	waitForClients(t, h, 1)

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Serve() = %v, want context.Canceled", err)
	}
	if h.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d after shutdown, want 0", h.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Fatal("client channel still open after shutdown")
	}
}

func TestHubOnStateChange(t *testing.T) {
	h := NewHub()
	h.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	stop := startHub(t, h)
	defer stop()

	c := newTestClient(h, 4)
	h.Register <- c
	waitForClients(t, h, 1)

	h.OnStateChange("billing", breaker.StateClosed, breaker.StateOpen)

	select {
	case msg := <-c.send:
		if msg.Type != MessageTypeBreakerTransition {
			t.Fatalf("message type = %q, want breaker_transition", msg.Type)
		}
		data, ok := msg.Data.(BreakerTransitionData)
		if !ok {
			t.Fatalf("payload type = %T", msg.Data)
		}
		if data.Backend != "billing" || data.From != "closed" || data.To != "open" {
			t.Fatalf("payload = %+v", data)
		}
		if data.Timestamp != "2026-08-01T12:00:00Z" {
			t.Fatalf("timestamp = %q", data.Timestamp)
		}
	case <-time.After(time.Second):
		t.Fatal("no transition frame delivered")
	}
}

func TestHubBroadcastDoesNotBlockWhenQueueFull(t *testing.T) {
	h := NewHub()
	// Hub loop not running: the queue fills and further frames drop.
	for i := 0; i < 300; i++ {
		h.Broadcast(MessageTypeStatsUpdate, i)
	}
}
