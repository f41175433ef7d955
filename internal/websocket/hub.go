package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub maintains the set of active clients and broadcasts messages to them.
// Clients subscribe to their organization; agenda change notifications are
// fanned out per organization so one firm never sees another's activity.
type Hub struct {
	// mu guards clients and subscriptions. Run mutates them from the hub
	// goroutine while BroadcastTo reads them from whatever goroutine performed
	// the agenda write.
	mu sync.Mutex

	// Registered clients.
	clients map[*Client]bool

	// Inbound messages from the clients for global broadcast.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// A map of organization IDs to the set of clients subscribed to it.
	subscriptions map[string]map[*Client]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:     make(chan []byte),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Msg("Client connected")
			if client.OrganizationID != "" {
				h.addSubscription(client, client.OrganizationID)
			}
			h.mu.Unlock()
		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.removeSubscription(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.removeSubscription(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastTo sends a message to all clients subscribed to an organization.
// Safe to call from any goroutine.
func (h *Hub) BroadcastTo(organizationID string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscriptions[organizationID]; ok {
		for client := range subs {
			select {
			case client.Send <- message:
			default:
				close(client.Send)
				delete(h.clients, client)
				delete(h.subscriptions[organizationID], client)
			}
		}
	}
}

// addSubscription and removeSubscription expect h.mu to be held.
func (h *Hub) addSubscription(client *Client, organizationID string) {
	if h.subscriptions[organizationID] == nil {
		h.subscriptions[organizationID] = make(map[*Client]bool)
	}
	h.subscriptions[organizationID][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for organizationID, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, organizationID)
			}
		}
	}
}
