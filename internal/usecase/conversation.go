package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marketlive/internal/adapter/rest"
	"marketlive/internal/domain/entity"
	"marketlive/internal/infrastructure/auth"
	"marketlive/internal/infrastructure/push"
	"marketlive/internal/infrastructure/ratelimit"
	apperrors "marketlive/pkg/errors"
	"marketlive/pkg/logger"
)

// ConversationStore owns one conversation view's ordered message feed. It
// merges the REST-fetched history with transport-delivered messages,
// deduplicating by message identity, and exposes the feed to UI consumers
// through snapshots plus a subscribe/notify mechanism.
//
// The feed is owned exclusively by the scope that created the store; it is
// not shared across concurrently open conversation views.
type ConversationStore struct {
	rest      *rest.Client
	transport *push.Manager
	unread    *UnreadAggregator
	session   *auth.Session
	limiter   *ratelimit.RateLimiter

	mu          sync.Mutex
	activeID    string
	messages    []entity.Message
	index       map[string]int
	loading     bool
	lastErr     error
	conn        *push.Conn
	subscribers map[int]func()
	nextSubID   int
}

func NewConversationStore(
	restClient *rest.Client,
	transport *push.Manager,
	unread *UnreadAggregator,
	session *auth.Session,
) *ConversationStore {
	limiter := ratelimit.NewRateLimiter()
	limiter.StartCleanupRoutine()

	return &ConversationStore{
		rest:        restClient,
		transport:   transport,
		unread:      unread,
		session:     session,
		limiter:     limiter,
		index:       make(map[string]int),
		subscribers: make(map[int]func()),
	}
}

// Open activates the store for a conversation and loads its history. When
// live is set, a push channel is attached; switching conversations closes the
// prior channel before the new one is opened. The conversation store and the
// unread aggregator each subscribe to the channel independently.
func (s *ConversationStore) Open(ctx context.Context, conversationID string, live bool) error {
	if conversationID == "" {
		return apperrors.BadRequest("conversation id is required", nil)
	}

	s.mu.Lock()
	s.activeID = conversationID
	s.messages = nil
	s.index = make(map[string]int)
	s.lastErr = nil
	prev := s.conn
	s.conn = nil
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	if live {
		conn, err := s.transport.Open(ctx, conversationID)
		if err != nil {
			return err
		}
		conn.Subscribe(s.handleEnvelope)
		conn.Subscribe(s.unread.HandleEnvelope)
		conn.OnStatus(func(err error) {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			s.notify()
		})

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
	}

	return s.Load(ctx)
}

// Load fetches history via REST and replaces the current feed wholesale. A
// result that resolves after the active conversation has changed away from
// the requesting identity is discarded.
func (s *ConversationStore) Load(ctx context.Context) error {
	s.mu.Lock()
	requested := s.activeID
	s.loading = true
	s.mu.Unlock()

	if requested == "" {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return apperrors.BadRequest("no active conversation", nil)
	}

	msgs, err := s.rest.FetchMessages(ctx, requested)
	return s.applyHistory(requested, msgs, err)
}

// Refresh is a manual re-fetch of the active conversation's history.
func (s *ConversationStore) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// applyHistory applies a resolved history fetch. The stale-response guard
// compares the active identity at resolution time, not at call time.
func (s *ConversationStore) applyHistory(requested string, msgs []entity.Message, err error) error {
	s.mu.Lock()
	s.loading = false

	if s.activeID != requested {
		s.mu.Unlock()
		logger.Debug("discarding stale history for conversation %s", requested)
		return apperrors.StaleResponse("history load superseded")
	}

	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.lastErr = nil
	s.messages = make([]entity.Message, 0, len(msgs))
	s.index = make(map[string]int, len(msgs))
	for _, m := range msgs {
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		s.index[m.ID] = len(s.messages)
		s.messages = append(s.messages, m)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Send validates and posts a message. On success the message reaches the feed
// only via the subsequent push broadcast, never by local optimistic insertion;
// every participant, sender included, observes the same canonical ordering.
func (s *ConversationStore) Send(ctx context.Context, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return apperrors.BadRequest("message body is empty", nil)
	}
	if !s.session.Authenticated() {
		return apperrors.AuthRequired("sign in to send messages", nil)
	}
	if allowed, wait := s.limiter.Allow(s.session.UserID(), "send_message"); !allowed {
		return apperrors.TooManyRequests(
			fmt.Sprintf("sending too fast, retry in %s", wait.Round(time.Second)))
	}

	s.mu.Lock()
	conversationID := s.activeID
	s.mu.Unlock()
	if conversationID == "" {
		return apperrors.BadRequest("no active conversation", nil)
	}

	return s.rest.PostMessage(ctx, conversationID, body)
}

// Append inserts a transport-delivered message. Messages are unique by
// identity; a duplicate append is a no-op, except that the echo of a
// not-yet-confirmed local send promotes the stored origin tag. Insertion
// keeps creation order with a stable arrival-order tie-break.
func (s *ConversationStore) Append(msg entity.Message) {
	s.mu.Lock()

	if msg.ConversationID != s.activeID {
		s.mu.Unlock()
		return
	}

	if i, ok := s.index[msg.ID]; ok {
		if s.messages[i].Origin == entity.OriginPending {
			s.messages[i].Origin = msg.Origin
			s.mu.Unlock()
			s.notify()
			return
		}
		s.mu.Unlock()
		return
	}

	pos := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].CreatedAt.After(msg.CreatedAt)
	})
	s.messages = append(s.messages, entity.Message{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = msg
	for i := pos; i < len(s.messages); i++ {
		s.index[s.messages[i].ID] = i
	}
	s.mu.Unlock()

	s.notify()
}

// MarkRead optimistically clears the local unread counter, then informs the
// backend. A later authoritative receipt wins if it disagrees.
func (s *ConversationStore) MarkRead(ctx context.Context) error {
	s.mu.Lock()
	conversationID := s.activeID
	s.mu.Unlock()
	if conversationID == "" {
		return apperrors.BadRequest("no active conversation", nil)
	}

	s.unread.ClearLocally(conversationID)
	return s.rest.MarkRead(ctx, conversationID)
}

// Close tears down the store's scope: the push channel is closed and the
// active identity is cleared so late-resolving loads are discarded.
func (s *ConversationStore) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.activeID = ""
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Messages returns a snapshot of the feed.
func (s *ConversationStore) Messages() []entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ConversationStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *ConversationStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Conn returns the live push connection, or nil when the store was opened
// without one.
func (s *ConversationStore) Conn() *push.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Subscribe registers a feed consumer. The returned function unsubscribes.
func (s *ConversationStore) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *ConversationStore) handleEnvelope(env push.Envelope) {
	// Read receipts are consumed by the unread aggregator, which holds its
	// own subscription on the connection.
	if env.Kind == push.KindChatMessage {
		s.Append(*env.Message)
	}
}

func (s *ConversationStore) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
