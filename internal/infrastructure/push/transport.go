package push

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"marketlive/internal/metrics"
	apperrors "marketlive/pkg/errors"
	"marketlive/pkg/logger"
)

// ConnState is the lifecycle state of a push connection.
type ConnState string

const (
	StateIdle       ConnState = "idle"
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosed     ConnState = "closed"
)

// EnvelopeHandler receives decoded envelopes in transport arrival order.
type EnvelopeHandler func(Envelope)

// StatusHandler receives recoverable connection conditions (remote close or
// transport error). It is never called for an explicit local Close.
type StatusHandler func(err error)

// Manager owns at most one live push connection at a time, scoped to the
// active conversation. Switching conversations closes the prior connection
// before the new one is handed out.
type Manager struct {
	wsBaseURL string
	token     string
	dialer    *websocket.Dialer

	mu     sync.Mutex
	active *Conn
}

func NewManager(wsBaseURL, token string) *Manager {
	return &Manager{
		wsBaseURL: wsBaseURL,
		token:     token,
		dialer:    websocket.DefaultDialer,
	}
}

// Open dials the push channel for conversationID. Any previously active
// connection is closed first.
func (m *Manager) Open(ctx context.Context, conversationID string) (*Conn, error) {
	m.mu.Lock()
	prev := m.active
	m.active = nil
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	conn := &Conn{
		conversationID: conversationID,
		state:          StateConnecting,
	}

	header := http.Header{}
	if m.token != "" {
		header.Set("Authorization", "Bearer "+m.token)
	}

	ws, _, err := m.dialer.DialContext(ctx, m.wsBaseURL+"/ws/conversations/"+conversationID, header)
	if err != nil {
		conn.mu.Lock()
		conn.state = StateClosed
		conn.mu.Unlock()
		return nil, apperrors.Network("failed to open push channel", err)
	}

	conn.mu.Lock()
	conn.ws = ws
	conn.state = StateOpen
	conn.mu.Unlock()

	m.mu.Lock()
	m.active = conn
	m.mu.Unlock()

	go conn.readLoop()

	logger.Debug("push channel open for conversation %s", conversationID)
	return conn, nil
}

// CloseActive tears down the active connection, if any.
func (m *Manager) CloseActive() {
	m.mu.Lock()
	conn := m.active
	m.active = nil
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Conn is one live push connection scoped to a single conversation. It is
// owned by the scope that opened it and never shared across conversations.
type Conn struct {
	conversationID string

	mu        sync.Mutex
	ws        *websocket.Conn
	state     ConnState
	local     bool
	handlers  []EnvelopeHandler
	statusFns []StatusHandler

	closeOnce sync.Once
}

func (c *Conn) ConversationID() string {
	return c.conversationID
}

func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers an envelope handler. Handlers run synchronously in the
// read loop, so delivery order equals transport arrival order.
func (c *Conn) Subscribe(h EnvelopeHandler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// OnStatus registers a handler for recoverable disconnect conditions.
func (c *Conn) OnStatus(h StatusHandler) {
	c.mu.Lock()
	c.statusFns = append(c.statusFns, h)
	c.mu.Unlock()
}

// Send writes a JSON command to the channel. Sends attempted before the
// connection is open are rejected; nothing is buffered.
func (c *Conn) Send(v interface{}) error {
	c.mu.Lock()
	ws := c.ws
	state := c.state
	c.mu.Unlock()

	if state != StateOpen || ws == nil {
		return apperrors.NotReady("push channel is not open")
	}
	if err := ws.WriteJSON(v); err != nil {
		return apperrors.Network("push send failed", err)
	}
	return nil
}

// Close tears down the connection. Only a connection that is still open is
// closed on the wire; repeated calls are no-ops.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		ws := c.ws
		wasOpen := c.state == StateOpen
		c.local = true
		c.state = StateClosed
		c.mu.Unlock()

		if ws != nil && wasOpen {
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			ws.Close()
		}
	})
}

func (c *Conn) readLoop() {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			local := c.local
			c.state = StateClosed
			c.mu.Unlock()
			if local {
				return
			}

			metrics.PushDisconnects.Inc()
			logger.Warn("push channel closed for conversation %s: %v", c.conversationID, err)
			c.notifyStatus(apperrors.Disconnected("push channel disconnected", err))
			return
		}

		env := Decode(raw)
		if env.Kind == KindUnrecognized {
			metrics.PushParseFailures.Inc()
			logger.Warn("dropping unrecognized push frame on conversation %s", c.conversationID)
			continue
		}

		// A closed-then-replaced connection can still deliver frames racily;
		// anything tagged with another conversation is ignored.
		if env.ConversationID() != c.conversationID {
			logger.Debug("ignoring envelope for conversation %s on channel %s",
				env.ConversationID(), c.conversationID)
			continue
		}

		c.mu.Lock()
		closed := c.state == StateClosed
		hs := append([]EnvelopeHandler(nil), c.handlers...)
		c.mu.Unlock()
		if closed {
			return
		}

		if env.Kind == KindChatMessage {
			metrics.PushMessagesDelivered.Inc()
		}
		for _, h := range hs {
			h(env)
		}
	}
}

func (c *Conn) notifyStatus(err error) {
	c.mu.Lock()
	fns := append([]StatusHandler(nil), c.statusFns...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}
