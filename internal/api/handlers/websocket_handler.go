package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fmorante/lexagenda-be/internal/auth"
	ws "github.com/fmorante/lexagenda-be/internal/websocket"
)

// WebSocketHandler upgrades HTTP connections and subscribes each client to
// its organization's change notifications.
type WebSocketHandler struct {
	hub *ws.Hub
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (consider tightening this in production).
		return true
	},
}

// Serve handles the WebSocket connection request. The route sits behind the
// JWT middleware, so the organization comes from the verified claims.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.OrganizationID == "" {
		http.Error(w, "Missing organization", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, claims.OrganizationID)
	h.hub.Register <- client

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		client.WritePump()
	}()
	go func() {
		defer wg.Done()
		// Inbound messages are ignored; the socket is push-only.
		client.ReadPump(nil)
	}()

	// Cleanup on disconnect.
	go func() {
		wg.Wait()
		h.hub.Unregister <- client
	}()
}
