package devserver

import (
	"sync"
	"time"

	"marketlive/internal/domain/entity"
)

// Store is the in-memory backing state of the dev backend. Read positions are
// tracked per (conversation, user) so mark-read can report how many messages
// the receipt covers.
type Store struct {
	mu           sync.Mutex
	messages     map[string][]entity.Message
	lastRead     map[string]map[string]int // conversation -> user -> read watermark
	transactions []entity.TransactionSummary
}

func NewStore() *Store {
	return &Store{
		messages: make(map[string][]entity.Message),
		lastRead: make(map[string]map[string]int),
	}
}

// Seed fills the store with a couple of conversations so the CLI has
// something to show out of the box.
func (s *Store) Seed() {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = []entity.TransactionSummary{
		{
			ID:              "txn-1001",
			ConversationID:  "conv-1001",
			CounterpartID:   "seller-alex",
			CounterpartName: "Alex",
			LastMessage:     "Account details sent after payment.",
			LastActivityAt:  now.Add(-10 * time.Minute),
		},
		{
			ID:              "txn-1002",
			ConversationID:  "conv-1002",
			CounterpartID:   "seller-kim",
			CounterpartName: "Kim",
			LastMessage:     "Thanks for the quick deal!",
			LastActivityAt:  now.Add(-48 * time.Hour),
			Archived:        true,
		},
	}

	s.messages["conv-1001"] = []entity.Message{
		{
			ID:             "msg-1",
			ConversationID: "conv-1001",
			SenderID:       "seller-alex",
			Body:           "Hi! The item is still available.",
			CreatedAt:      now.Add(-15 * time.Minute),
		},
		{
			ID:             "msg-2",
			ConversationID: "conv-1001",
			SenderID:       "seller-alex",
			Body:           "Account details sent after payment.",
			CreatedAt:      now.Add(-10 * time.Minute),
		},
	}
}

func (s *Store) Messages(conversationID string) []entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	out := make([]entity.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *Store) AppendMessage(msg entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)

	for i := range s.transactions {
		if s.transactions[i].ConversationID == msg.ConversationID {
			s.transactions[i].LastMessage = msg.Body
			s.transactions[i].LastActivityAt = msg.CreatedAt
		}
	}
}

// MarkRead advances the user's read watermark to the end of the conversation
// and returns how many messages the receipt covers.
func (s *Store) MarkRead(conversationID, userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.messages[conversationID])
	perUser := s.lastRead[conversationID]
	if perUser == nil {
		perUser = make(map[string]int)
		s.lastRead[conversationID] = perUser
	}

	marked := total - perUser[userID]
	if marked < 0 {
		marked = 0
	}
	perUser[userID] = total
	return marked
}

func (s *Store) Transactions(archived bool) []entity.TransactionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.TransactionSummary, 0, len(s.transactions))
	for _, t := range s.transactions {
		if t.Archived == archived {
			out = append(out, t)
		}
	}
	return out
}
