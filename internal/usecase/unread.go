package usecase

import (
	"sync"

	"marketlive/internal/infrastructure/push"
	"marketlive/internal/metrics"
	"marketlive/pkg/logger"
)

// UnreadAggregator owns the process-wide map from conversation identity to
// unread count. It is the single owner of that state: consumers read through
// its accessors and mutate only through its operations, so a reader never
// observes a partially applied update. Readers that render badges register
// through Subscribe and are notified after every applied mutation.
type UnreadAggregator struct {
	selfID string

	mu          sync.Mutex
	counts      map[string]int
	subscribers map[int]func()
	nextSubID   int
}

// NewUnreadAggregator builds the aggregator for the current user. Messages
// authored by selfID never increment a counter.
func NewUnreadAggregator(selfID string) *UnreadAggregator {
	return &UnreadAggregator{
		selfID:      selfID,
		counts:      make(map[string]int),
		subscribers: make(map[int]func()),
	}
}

// HandleEnvelope is the aggregator's independent subscription to a push
// connection; it runs alongside the conversation store's own handler.
func (a *UnreadAggregator) HandleEnvelope(env push.Envelope) {
	switch env.Kind {
	case push.KindChatMessage:
		a.OnMessageDelivered(env.Message.ConversationID, env.Message.SenderID)
	case push.KindReadReceipt:
		a.OnReadReceipt(env.Receipt.ConversationID, env.Receipt.MarkedCount)
	}
}

// OnMessageDelivered increments the conversation's counter by exactly one,
// unless the current user authored the message.
func (a *UnreadAggregator) OnMessageDelivered(conversationID, senderID string) {
	if senderID == a.selfID {
		return
	}

	a.mu.Lock()
	a.counts[conversationID]++
	a.mu.Unlock()

	metrics.UnreadIncrements.Inc()
	a.notify()
}

// OnReadReceipt applies an authoritative receipt. A receipt asserts that all
// currently visible messages are read, so the counter is reset to zero rather
// than decremented by the marked count; this keeps repeated or lost receipts
// from drifting the counter.
func (a *UnreadAggregator) OnReadReceipt(conversationID string, markedCount int) {
	a.mu.Lock()
	prev := a.counts[conversationID]
	a.counts[conversationID] = 0
	a.mu.Unlock()

	metrics.UnreadResets.WithLabelValues("receipt").Inc()
	logger.Debug("read receipt for conversation %s: %d marked, counter was %d",
		conversationID, markedCount, prev)
	a.notify()
}

// ClearLocally optimistically resets the counter when the user opens a
// conversation, before any backend confirmation. A later receipt that
// disagrees wins, since receipts are authoritative.
func (a *UnreadAggregator) ClearLocally(conversationID string) {
	a.mu.Lock()
	a.counts[conversationID] = 0
	a.mu.Unlock()

	metrics.UnreadResets.WithLabelValues("local").Inc()
	a.notify()
}

// Track lazily creates a zero entry so list consumers see the conversation.
func (a *UnreadAggregator) Track(conversationID string) {
	a.mu.Lock()
	if _, ok := a.counts[conversationID]; !ok {
		a.counts[conversationID] = 0
	}
	a.mu.Unlock()
}

func (a *UnreadAggregator) CountFor(conversationID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[conversationID]
}

func (a *UnreadAggregator) TotalUnread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, n := range a.counts {
		total += n
	}
	return total
}

// Snapshot returns a copy of the counter map.
func (a *UnreadAggregator) Snapshot() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// Subscribe registers a badge consumer. The returned function unsubscribes.
func (a *UnreadAggregator) Subscribe(fn func()) func() {
	a.mu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
	}
}

func (a *UnreadAggregator) notify() {
	a.mu.Lock()
	fns := make([]func(), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
