package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Client represents a single websocket client connection.
// The network conn itself is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub maintains active user connections and broadcasts events to them.
type Hub struct {
	mu              sync.RWMutex
	userIDToClients map[string]map[Client]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		userIDToClients: make(map[string]map[Client]struct{}),
	}
}

// Register adds a client under a user ID.
func (h *Hub) Register(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userIDToClients[userID]; !ok {
		h.userIDToClients[userID] = make(map[Client]struct{})
	}
	h.userIDToClients[userID][client] = struct{}{}
}

// Unregister removes a client; if user has no more clients, cleans up map.
func (h *Hub) Unregister(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.userIDToClients[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userIDToClients, userID)
		}
	}
}

// Connected returns how many clients a user currently has
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userIDToClients[userID])
}

// Broadcast sends a message to all clients of a user and returns how many
// accepted it. Failed clients are cleaned up by their handler.
func (h *Hub) Broadcast(userID string, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for c := range h.userIDToClients[userID] {
		if c.Send(message) {
			sent++
		}
	}
	return sent
}

// Publish implements Publisher by broadcasting to every recipient
func (h *Hub) Publish(_ context.Context, evt Event) error {
	msg, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	for _, userID := range evt.Recipients {
		h.Broadcast(userID, msg)
	}
	return nil
}
