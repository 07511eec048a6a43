package push

import (
	"encoding/json"
	"time"

	"marketlive/internal/domain/entity"
)

// Frame type discriminators on the push channel.
const (
	TypeMessage     = "message"
	TypeReadReceipt = "read_receipt"
)

type EnvelopeKind int

const (
	KindUnrecognized EnvelopeKind = iota
	KindChatMessage
	KindReadReceipt
)

// Envelope is a decoded push payload classified into exactly one variant.
type Envelope struct {
	Kind    EnvelopeKind
	Message *entity.Message
	Receipt *entity.ReadReceipt
}

// ConversationID returns the conversation the envelope is tagged with, or ""
// for unrecognized payloads.
func (e Envelope) ConversationID() string {
	switch e.Kind {
	case KindChatMessage:
		return e.Message.ConversationID
	case KindReadReceipt:
		return e.Receipt.ConversationID
	}
	return ""
}

// Command is an outbound client frame.
type Command struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

const CommandMarkRead = "mark_read"

// frame mirrors the wire shape of inbound payloads. Chat frames carry the
// message fields; receipt frames carry conversation_id and marked.
type frame struct {
	Type           string `json:"type"`
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Body           string `json:"body"`
	CreatedAt      string `json:"created_at"`
	Marked         int    `json:"marked"`
}

// Decode classifies a raw push payload. Malformed input is a classification
// outcome (KindUnrecognized), never an error or a panic.
func Decode(raw []byte) Envelope {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Envelope{Kind: KindUnrecognized}
	}

	if f.Type == TypeReadReceipt {
		if f.ConversationID == "" || f.Marked < 0 {
			return Envelope{Kind: KindUnrecognized}
		}
		return Envelope{
			Kind: KindReadReceipt,
			Receipt: &entity.ReadReceipt{
				ConversationID: f.ConversationID,
				MarkedCount:    f.Marked,
				ReceivedAt:     time.Now(),
			},
		}
	}

	// Anything else that structurally matches the chat-message shape is a
	// chat message, whether or not it carries the "message" tag.
	if f.ID != "" && f.ConversationID != "" && f.SenderID != "" {
		// An unparsable timestamp degrades to the zero time; ordering then
		// falls back to arrival order, which stays stable.
		createdAt, _ := time.Parse(time.RFC3339, f.CreatedAt)
		return Envelope{
			Kind: KindChatMessage,
			Message: &entity.Message{
				ID:             f.ID,
				ConversationID: f.ConversationID,
				SenderID:       f.SenderID,
				Body:           f.Body,
				CreatedAt:      createdAt,
				Origin:         entity.OriginPushed,
			},
		}
	}

	return Envelope{Kind: KindUnrecognized}
}
