package entity

import "time"

// TransactionSummary is one row of the user's conversations list. Rows are
// replaced wholesale on each poll tick; they are never patched in place.
type TransactionSummary struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	CounterpartID   string    `json:"counterpart_id"`
	CounterpartName string    `json:"counterpart_name,omitempty"`
	LastMessage     string    `json:"last_message,omitempty"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	Archived        bool      `json:"archived"`
}
