package push

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChatMessage(t *testing.T) {
	raw := []byte(`{"type":"message","id":"m1","conversation_id":"conv-1","sender_id":"seller-9","body":"hello","created_at":"2026-08-28T10:15:00Z"}`)

	env := Decode(raw)
	require.Equal(t, KindChatMessage, env.Kind)
	require.NotNil(t, env.Message)
	assert.Equal(t, "m1", env.Message.ID)
	assert.Equal(t, "conv-1", env.Message.ConversationID)
	assert.Equal(t, "seller-9", env.Message.SenderID)
	assert.Equal(t, "hello", env.Message.Body)
	assert.Equal(t, time.Date(2026, 8, 28, 10, 15, 0, 0, time.UTC), env.Message.CreatedAt)
	assert.Equal(t, "conv-1", env.ConversationID())
}

func TestDecodeChatMessageWithoutTypeTag(t *testing.T) {
	// Frames that structurally match the message shape classify as chat
	// messages even without the discriminator.
	raw := []byte(`{"id":"m2","conversation_id":"conv-1","sender_id":"buyer-3","body":"ok"}`)

	env := Decode(raw)
	require.Equal(t, KindChatMessage, env.Kind)
	assert.Equal(t, "m2", env.Message.ID)
	assert.True(t, env.Message.CreatedAt.IsZero())
}

func TestDecodeReadReceipt(t *testing.T) {
	raw := []byte(`{"type":"read_receipt","conversation_id":"conv-1","marked":3}`)

	env := Decode(raw)
	require.Equal(t, KindReadReceipt, env.Kind)
	require.NotNil(t, env.Receipt)
	assert.Equal(t, "conv-1", env.Receipt.ConversationID)
	assert.Equal(t, 3, env.Receipt.MarkedCount)
	assert.False(t, env.Receipt.ReceivedAt.IsZero())
	assert.Equal(t, "conv-1", env.ConversationID())
}

func TestDecodeNeverErrors(t *testing.T) {
	cases := map[string][]byte{
		"invalid json":             []byte(`{not json`),
		"empty object":             []byte(`{}`),
		"empty input":              nil,
		"array payload":            []byte(`[1,2,3]`),
		"message missing sender":   []byte(`{"id":"m3","conversation_id":"conv-1","body":"x"}`),
		"message missing id":       []byte(`{"conversation_id":"conv-1","sender_id":"u1","body":"x"}`),
		"receipt without conv":     []byte(`{"type":"read_receipt","marked":2}`),
		"receipt negative marked":  []byte(`{"type":"read_receipt","conversation_id":"conv-1","marked":-1}`),
		"unknown discriminator":    []byte(`{"type":"presence","user_id":"u1"}`),
		"wrong field types":        []byte(`{"type":"message","id":42,"conversation_id":true}`),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			env := Decode(raw)
			assert.Equal(t, KindUnrecognized, env.Kind)
			assert.Nil(t, env.Message)
			assert.Nil(t, env.Receipt)
			assert.Equal(t, "", env.ConversationID())
		})
	}
}

func TestDecodeBadTimestampDegradesToZeroTime(t *testing.T) {
	raw := []byte(`{"type":"message","id":"m4","conversation_id":"conv-1","sender_id":"u1","body":"x","created_at":"yesterday"}`)

	env := Decode(raw)
	require.Equal(t, KindChatMessage, env.Kind)
	assert.True(t, env.Message.CreatedAt.IsZero())
}
