// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/ostium/internal/logging"
)

// Handler upgrades an admin request to the live feed. Origin checks
// ride on the admin router's CORS policy; the upgrade itself sits
// behind the operator credential, so same-origin enforcement here
// would only break reverse-proxied dashboards.
func Handler(hub *Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			logging.Debug().Err(err).Msg("live feed upgrade failed")
			return
		}
		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}
}
