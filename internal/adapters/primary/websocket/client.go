package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lorrc/ticket-tally/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be below pongWait
	maxMessageSize = 1024
	sendBuffer     = 64
)

// Client is one dashboard connection. Viewers only listen; the hub pushes
// tally events through Send and the write pump forwards them.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan domain.Event

	ID       string
	Operator string // empty for anonymous viewers

	// mu guards closed so no send can race the close of Send.
	mu     sync.Mutex
	closed bool
	logger *slog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, operator string, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan domain.Event, sendBuffer),
		ID:       id,
		Operator: operator,
		logger:   logger.With("client_id", id),
	}
}

// CloseSend closes Send; later calls are no-ops.
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// trySend queues event without blocking. It reports false when the buffer
// is full or the client has been closed.
func (c *Client) trySend(event domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- event:
		return true
	default:
		return false
	}
}

// ReadPump keeps the read deadline alive and answers PING messages. It
// unregisters the client when the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		_ = c.Conn.Close()
	}()

	extend := func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetPongHandler(extend)
	if err := extend(""); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handleIncomingMessage(message)
	}
}

// WritePump forwards queued events and sends periodic pings until Send is
// closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		var err error
		select {
		case event, ok := <-c.Send:
			if !ok {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			if err = c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				err = c.Conn.WriteJSON(event)
			}
		case <-ticker.C:
			err = c.write(websocket.PingMessage, nil)
		}

		if err != nil {
			c.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}

// ClientMessage is a message sent by a viewer.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("ignoring malformed viewer message", "error", err)
		return
	}

	if msg.Type != "PING" {
		c.logger.Debug("ignoring viewer message", "type", msg.Type)
		return
	}
	c.trySend(domain.Event{Type: domain.EventPong})
}
