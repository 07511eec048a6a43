package devserver

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"marketlive/pkg/logger"
)

// Client is one WebSocket subscriber scoped to a single conversation.
type Client struct {
	UserID         string
	ConversationID string
	Conn           *websocket.Conn
	Send           chan []byte
}

// Hub manages active push subscribers grouped by conversation.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]bool
	handler func(c *Client, frame []byte)
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]bool),
	}
}

// OnCommand sets the handler for inbound client frames.
func (h *Hub) OnCommand(fn func(c *Client, frame []byte)) {
	h.handler = fn
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.ConversationID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[c.ConversationID] = room
	}
	room[c] = true
	h.mu.Unlock()

	logger.Info("push subscriber %s joined conversation %s", c.UserID, c.ConversationID)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.ConversationID]; ok {
		if room[c] {
			delete(room, c)
			close(c.Send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.ConversationID)
		}
	}
	h.mu.Unlock()

	logger.Info("push subscriber %s left conversation %s", c.UserID, c.ConversationID)
}

// Broadcast sends a frame to every subscriber of a conversation, the
// originator included. Slow clients are dropped rather than blocking the
// room.
func (h *Hub) Broadcast(conversationID string, payload interface{}) {
	frame, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal push frame: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[conversationID]))
	for c := range h.rooms[conversationID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.Send <- frame:
		default:
			h.Unregister(c)
		}
	}
}

// ReadPump reads frames from the client until the connection drops.
func (c *Client) ReadPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		c.Conn.Close()
	}()

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("push read error for %s: %v", c.UserID, err)
			}
			break
		}

		if h.handler != nil {
			h.handler(c, frame)
		}
	}
}

// WritePump drains the send channel onto the wire.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		frame, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logger.Warn("push write error for %s: %v", c.UserID, err)
			return
		}
	}
}
