package entity

import "time"

// MessageOrigin tags how a message entered the local feed.
type MessageOrigin string

const (
	OriginFetched MessageOrigin = "fetched" // came from the REST history fetch
	OriginPushed  MessageOrigin = "pushed"  // delivered over the push channel
	OriginPending MessageOrigin = "pending" // sent locally, not yet confirmed by the push echo
)

type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Body           string        `json:"body"`
	CreatedAt      time.Time     `json:"created_at"`
	Origin         MessageOrigin `json:"-"`
}

// ReadReceipt asserts that some number of messages in a conversation are now
// read. Consumed once by the unread aggregator, never stored.
type ReadReceipt struct {
	ConversationID string    `json:"conversation_id"`
	MarkedCount    int       `json:"marked"`
	ReceivedAt     time.Time `json:"-"`
}
