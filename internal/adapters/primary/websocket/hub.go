// Package websocket fans tally events out to connected dashboards.
package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	"github.com/lorrc/ticket-tally/internal/core/ports"
)

// Hub owns the set of connected viewers. All membership changes go through
// Run's loop; the mutex only guards reads from other goroutines.
type Hub struct {
	clients   map[*Client]struct{}
	broadcast chan domain.Event

	Register   chan *Client
	Unregister chan *Client

	// done is closed when Run returns so late registrations do not block.
	done chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan domain.Event, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Attach wraps an upgraded connection in a Client, registers it and starts
// its pumps.
func (h *Hub) Attach(conn *websocket.Conn, operator string, logger *slog.Logger) *Client {
	client := NewClient(h, conn, operator, logger)
	if !h.register(client) {
		client.CloseSend()
	}
	go client.WritePump()
	go client.ReadPump()
	return client
}

// register hands client to Run. It reports false once the hub has stopped.
func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues an event for every viewer. A full queue drops the event;
// a missed refresh is not worth blocking a submission for.
func (h *Hub) Broadcast(event domain.Event) error {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "event_type", event.Type)
	}
	return nil
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case event := <-h.broadcast:
			h.fanOut(event)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("viewer registered",
		"client_id", client.ID,
		"operator", client.Operator,
		"viewers", n,
	)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		client.CloseSend()
		h.logger.Info("viewer unregistered", "client_id", client.ID)
	}
}

// fanOut delivers event without blocking; viewers whose buffer is full are
// disconnected.
func (h *Hub) fanOut(event domain.Event) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	h.logger.Debug("broadcasting event", "event_type", event.Type, "viewers", len(clients))
	for _, c := range clients {
		if !c.trySend(event) {
			h.logger.Warn("viewer too slow, disconnecting", "client_id", c.ID)
			h.remove(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		c.CloseSend()
		delete(h.clients, c)
	}
	h.mu.Unlock()
	h.logger.Info("websocket hub stopped")
}

// GetClientCount returns the number of connected viewers.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
