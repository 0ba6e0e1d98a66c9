// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package websocket implements the admin live ops feed. A single Hub
// fans broadcast messages out to connected operator clients; a
// supervised Feed service pushes periodic stats snapshots through it,
// and circuit breaker transitions arrive via the hub's StateListener
// implementation. A client that cannot keep up is dropped rather than
// allowed to block the hub.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/ostium/internal/breaker"
	"github.com/tomtom215/ostium/internal/logging"
	"github.com/tomtom215/ostium/internal/metrics"
)

// Message types pushed over the live feed.
const (
	MessageTypeStatsUpdate       = "stats_update"
	MessageTypeBreakerTransition = "breaker_transition"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
)

// Message is one live feed frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// BreakerTransitionData is the payload of a breaker_transition frame.
type BreakerTransitionData struct {
	Backend   string `json:"backend"`
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`
}

// Hub maintains the set of connected clients and broadcasts frames to
// them. Register/Unregister are handled before pending broadcasts so
// client state is settled when a frame fans out.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	now func() time.Time
}

// NewHub creates an idle hub; Serve must be running for registration
// and broadcast to make progress.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		now:        time.Now,
	}
}

// Serve runs the hub loop under supervision. On context cancellation
// every connected client is closed and ctx.Err() is returned so the
// supervisor sees a clean stop.
//
// Lifecycle events are drained before broadcasts: when several
// channels are ready Go's select picks randomly, and handling a
// pending unregister after fanning out to that client would send on a
// closed channel.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) String() string { return "websocket-hub" }

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.TrackWSConnection(true)
	logging.Info().Int("total_clients", total).Msg("live feed client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.TrackWSConnection(false)
		logging.Info().Int("total_clients", total).Msg("live feed client disconnected")
	}
}

// broadcastToClients fans one frame out in client-id order. A client
// whose send buffer is full is dropped on the spot.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.TrackWSConnection(false)
		logging.Warn().Uint64("client_id", client.id).Msg("dropped slow live feed client")
	}
}

// shutdown closes every client and logs the stop. Cancellation is the
// normal shutdown path, so no error field is logged.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		metrics.TrackWSConnection(false)
	}
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("live feed hub stopped")
}

// Broadcast queues a frame for all connected clients. When the queue
// is full the frame is dropped; the feed is advisory and must never
// apply backpressure to the data path.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	message := Message{Type: messageType, Data: data}
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", messageType).Msg("live feed queue full, dropping frame")
	}
}

// OnStateChange implements breaker.StateListener, turning every
// circuit breaker transition into a breaker_transition frame.
func (h *Hub) OnStateChange(backend string, from, to breaker.State) {
	h.Broadcast(MessageTypeBreakerTransition, BreakerTransitionData{
		Backend:   backend,
		From:      from.String(),
		To:        to.String(),
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
