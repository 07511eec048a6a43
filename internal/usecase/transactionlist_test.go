package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlive/internal/adapter/rest"
	"marketlive/internal/domain/entity"
	"marketlive/internal/infrastructure/auth"
	apperrors "marketlive/pkg/errors"
)

// fakeListBackend serves the transactions endpoint with per-partition fixtures
// and a scriptable failure mode.
type fakeListBackend struct {
	mu         sync.Mutex
	srv        *httptest.Server
	active     []entity.TransactionSummary
	archived   []entity.TransactionSummary
	failWith   int
	requests   int
}

func newFakeListBackend(t *testing.T) *fakeListBackend {
	t.Helper()
	b := &fakeListBackend{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.requests++

		if b.failWith != 0 {
			w.WriteHeader(b.failWith)
			code := "INTERNAL_ERROR"
			if b.failWith == http.StatusUnauthorized {
				code = "AUTH_REQUIRED"
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   map[string]string{"code": code, "message": "scripted failure"},
			})
			return
		}

		items := b.active
		if r.URL.Query().Get("archived") == "true" {
			items = b.archived
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    items,
		})
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeListBackend) set(archived bool, items []entity.TransactionSummary) {
	b.mu.Lock()
	if archived {
		b.archived = items
	} else {
		b.active = items
	}
	b.mu.Unlock()
}

func (b *fakeListBackend) fail(status int) {
	b.mu.Lock()
	b.failWith = status
	b.mu.Unlock()
}

func (b *fakeListBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

func txn(id, convID, name string) entity.TransactionSummary {
	return entity.TransactionSummary{
		ID:              id,
		ConversationID:  convID,
		CounterpartID:   "u-" + name,
		CounterpartName: name,
		LastMessage:     "last from " + name,
		LastActivityAt:  time.Now(),
	}
}

func newTestSyncer(t *testing.T, b *fakeListBackend, pollInterval, staleAfter time.Duration, retries int) (*TransactionListSynchronizer, *UnreadAggregator) {
	t.Helper()
	session := auth.NewStatic("me", "test-token")
	client := rest.NewClient(b.srv.URL, session)
	unread := NewUnreadAggregator("me")
	return NewTransactionListSynchronizer(client, unread, pollInterval, staleAfter, retries), unread
}

func TestPartitionsAreCachedIndependently(t *testing.T) {
	b := newFakeListBackend(t)
	b.set(false, []entity.TransactionSummary{txn("t1", "conv-1", "alex")})
	b.set(true, []entity.TransactionSummary{txn("t2", "conv-2", "kim")})

	syncer, _ := newTestSyncer(t, b, time.Minute, time.Second, 1)

	require.NoError(t, syncer.Refresh(context.Background(), false, true))
	require.NoError(t, syncer.Refresh(context.Background(), true, true))

	active, err := syncer.Items(false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "t1", active[0].ID)

	archived, err := syncer.Items(true)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "t2", archived[0].ID)
}

func TestRefreshReplacesListWholesale(t *testing.T) {
	b := newFakeListBackend(t)
	b.set(false, []entity.TransactionSummary{txn("t1", "conv-1", "alex"), txn("t2", "conv-2", "kim")})

	syncer, _ := newTestSyncer(t, b, time.Minute, time.Second, 1)
	require.NoError(t, syncer.Refresh(context.Background(), false, true))

	b.set(false, []entity.TransactionSummary{txn("t3", "conv-3", "lee")})
	require.NoError(t, syncer.Refresh(context.Background(), false, true))

	items, err := syncer.Items(false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t3", items[0].ID)
}

func TestFreshCacheSuppressesUnforcedRefresh(t *testing.T) {
	b := newFakeListBackend(t)
	b.set(false, []entity.TransactionSummary{txn("t1", "conv-1", "alex")})

	syncer, _ := newTestSyncer(t, b, time.Minute, 10*time.Second, 1)
	require.NoError(t, syncer.Refresh(context.Background(), false, true))
	before := b.requestCount()

	require.NoError(t, syncer.Refresh(context.Background(), false, false))
	assert.Equal(t, before, b.requestCount(), "a fresh cache must not hit the backend")

	require.NoError(t, syncer.Refresh(context.Background(), false, true))
	assert.Equal(t, before+1, b.requestCount())
}

func TestPollFailureKeepsStaleViewAndSurfacesError(t *testing.T) {
	b := newFakeListBackend(t)
	b.set(false, []entity.TransactionSummary{txn("t1", "conv-1", "alex")})

	syncer, _ := newTestSyncer(t, b, time.Minute, time.Second, 1)
	require.NoError(t, syncer.Refresh(context.Background(), false, true))

	b.fail(http.StatusInternalServerError)
	err := syncer.Refresh(context.Background(), false, true)
	require.Error(t, err)

	items, itemsErr := syncer.Items(false)
	require.Len(t, items, 1, "the stale view stays rendered through a failed poll")
	assert.Equal(t, "t1", items[0].ID)
	assert.Error(t, itemsErr)

	// Recovery clears the surfaced error.
	b.fail(0)
	b.set(false, []entity.TransactionSummary{txn("t2", "conv-2", "kim")})
	require.NoError(t, syncer.Refresh(context.Background(), false, true))
	items, itemsErr = syncer.Items(false)
	require.NoError(t, itemsErr)
	assert.Equal(t, "t2", items[0].ID)
}

func TestTransientFailuresAreRetriedBounded(t *testing.T) {
	b := newFakeListBackend(t)
	b.fail(http.StatusInternalServerError)

	syncer, _ := newTestSyncer(t, b, time.Minute, time.Second, 2)
	err := syncer.Refresh(context.Background(), false, true)
	require.Error(t, err)
	assert.Equal(t, 2, b.requestCount())
}

func TestAuthFailureIsNotRetried(t *testing.T) {
	b := newFakeListBackend(t)
	b.fail(http.StatusUnauthorized)

	syncer, _ := newTestSyncer(t, b, time.Minute, time.Second, 3)
	err := syncer.Refresh(context.Background(), false, true)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "AUTH_REQUIRED"))
	assert.Equal(t, 1, b.requestCount())
}

func TestRefreshTracksConversationsForUnread(t *testing.T) {
	b := newFakeListBackend(t)
	b.set(false, []entity.TransactionSummary{txn("t1", "conv-1", "alex"), txn("t2", "conv-2", "kim")})

	syncer, unread := newTestSyncer(t, b, time.Minute, time.Second, 1)
	require.NoError(t, syncer.Refresh(context.Background(), false, true))

	snap := unread.Snapshot()
	_, ok1 := snap["conv-1"]
	_, ok2 := snap["conv-2"]
	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestListSubscribersNotified(t *testing.T) {
	b := newFakeListBackend(t)
	b.set(false, []entity.TransactionSummary{txn("t1", "conv-1", "alex")})

	syncer, _ := newTestSyncer(t, b, time.Minute, time.Second, 1)
	calls := 0
	unsub := syncer.Subscribe(func() { calls++ })

	require.NoError(t, syncer.Refresh(context.Background(), false, true))
	assert.Equal(t, 1, calls)

	unsub()
	require.NoError(t, syncer.Refresh(context.Background(), false, true))
	assert.Equal(t, 1, calls)
}
