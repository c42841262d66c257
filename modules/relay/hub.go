// Package relay fans bus messages out to locally connected clients.
package relay

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/example/redis-chat-relay/domain/chat"
)

// Hub is the process-wide table of live local connections. Ownership is
// explicit: the connection handler inserts on connect and removes on
// disconnect; the relay goroutine only reads.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a client to the fan-out table.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[relay] Client registered from %s. Total clients: %d", client.Addr(), count)
}

// Unregister removes a client from the fan-out table. The client receives no
// further deliveries once this returns.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
	}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[relay] Client unregistered from %s. Total clients: %d", client.Addr(), count)
}

// Deliver sends msg to every local client that is a member of room.
// Delivery is fire-and-forget per socket: a failed write is logged and does
// not prevent delivery to the remaining clients.
func (h *Hub) Deliver(room string, msg chat.Message) {
	data, err := json.Marshal(chat.NewBroadcastEvent(msg))
	if err != nil {
		log.Printf("[relay] Failed to marshal broadcast: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.InRoom(room) {
			continue
		}
		if err := client.write(data); err != nil {
			log.Printf("[relay] Failed to send to %s: %v", client.Addr(), err)
		}
	}
}

// ClientCount returns the number of live local connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every connection and empties the table.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		_ = client.Close()
	}
	h.clients = make(map[*Client]struct{})
}
