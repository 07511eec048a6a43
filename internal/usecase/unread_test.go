package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marketlive/internal/domain/entity"
	"marketlive/internal/infrastructure/push"
)

func TestUnreadIncrementsPerDeliveredMessage(t *testing.T) {
	a := NewUnreadAggregator("me")

	a.OnMessageDelivered("conv-1", "seller-9")
	a.OnMessageDelivered("conv-1", "seller-9")
	a.OnMessageDelivered("conv-2", "buyer-3")

	assert.Equal(t, 2, a.CountFor("conv-1"))
	assert.Equal(t, 1, a.CountFor("conv-2"))
	assert.Equal(t, 3, a.TotalUnread())
}

func TestUnreadSkipsOwnMessages(t *testing.T) {
	a := NewUnreadAggregator("me")

	a.OnMessageDelivered("conv-1", "me")

	assert.Zero(t, a.CountFor("conv-1"))
	assert.Zero(t, a.TotalUnread())
}

func TestReadReceiptResetsToZero(t *testing.T) {
	a := NewUnreadAggregator("me")
	for i := 0; i < 5; i++ {
		a.OnMessageDelivered("conv-1", "seller-9")
	}
	assert.Equal(t, 5, a.CountFor("conv-1"))

	// The receipt's marked count may lag behind the local counter; the
	// receipt still asserts everything visible is read.
	a.OnReadReceipt("conv-1", 3)
	assert.Zero(t, a.CountFor("conv-1"))
}

func TestReadReceiptIsIdempotent(t *testing.T) {
	a := NewUnreadAggregator("me")
	a.OnMessageDelivered("conv-1", "seller-9")

	a.OnReadReceipt("conv-1", 1)
	a.OnReadReceipt("conv-1", 1)
	a.OnReadReceipt("conv-1", 0)

	assert.Zero(t, a.CountFor("conv-1"))
	assert.Zero(t, a.TotalUnread())
}

func TestClearLocally(t *testing.T) {
	a := NewUnreadAggregator("me")
	a.OnMessageDelivered("conv-1", "seller-9")
	a.OnMessageDelivered("conv-2", "seller-9")

	a.ClearLocally("conv-1")

	assert.Zero(t, a.CountFor("conv-1"))
	assert.Equal(t, 1, a.CountFor("conv-2"))
}

func TestTrackCreatesZeroEntry(t *testing.T) {
	a := NewUnreadAggregator("me")

	a.Track("conv-1")
	snap := a.Snapshot()
	n, ok := snap["conv-1"]
	assert.True(t, ok)
	assert.Zero(t, n)

	// Tracking an already counted conversation keeps its count.
	a.OnMessageDelivered("conv-1", "seller-9")
	a.Track("conv-1")
	assert.Equal(t, 1, a.CountFor("conv-1"))
}

func TestUnreadSubscribersNotifiedOnEveryMutation(t *testing.T) {
	a := NewUnreadAggregator("me")

	calls := 0
	unsub := a.Subscribe(func() { calls++ })

	a.OnMessageDelivered("conv-1", "seller-9")
	a.OnReadReceipt("conv-1", 1)
	a.ClearLocally("conv-1")
	assert.Equal(t, 3, calls)

	unsub()
	a.OnMessageDelivered("conv-1", "seller-9")
	assert.Equal(t, 3, calls)
}

func TestHandleEnvelopeRoutesByKind(t *testing.T) {
	a := NewUnreadAggregator("me")

	a.HandleEnvelope(push.Envelope{
		Kind: push.KindChatMessage,
		Message: &entity.Message{
			ID:             "m1",
			ConversationID: "conv-1",
			SenderID:       "seller-9",
			Body:           "hi",
			CreatedAt:      time.Now(),
			Origin:         entity.OriginPushed,
		},
	})
	assert.Equal(t, 1, a.CountFor("conv-1"))

	a.HandleEnvelope(push.Envelope{
		Kind:    push.KindReadReceipt,
		Receipt: &entity.ReadReceipt{ConversationID: "conv-1", MarkedCount: 1},
	})
	assert.Zero(t, a.CountFor("conv-1"))

	// Unrecognized envelopes never touch the counters.
	a.HandleEnvelope(push.Envelope{Kind: push.KindUnrecognized})
	assert.Zero(t, a.TotalUnread())
}
