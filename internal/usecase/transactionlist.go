package usecase

import (
	"context"
	"sync"
	"time"

	"marketlive/internal/adapter/rest"
	"marketlive/internal/domain/entity"
	"marketlive/internal/metrics"
	apperrors "marketlive/pkg/errors"
	"marketlive/pkg/logger"
)

// listCache is one partition (active or archived) of the transactions list.
type listCache struct {
	items     []entity.TransactionSummary
	fetchedAt time.Time
	err       error
}

// TransactionListSynchronizer is the periodic-refresh read model of the
// user's conversations list. Each poll tick replaces the cached list
// wholesale; individual rows are never patched in place. The active and
// archived partitions are cached under distinct keys so the two views never
// evict each other.
type TransactionListSynchronizer struct {
	rest   *rest.Client
	unread *UnreadAggregator

	pollInterval time.Duration
	staleAfter   time.Duration
	maxRetries   int

	mu          sync.Mutex
	caches      map[bool]*listCache
	subscribers map[int]func()
	nextSubID   int
}

func NewTransactionListSynchronizer(
	restClient *rest.Client,
	unread *UnreadAggregator,
	pollInterval, staleAfter time.Duration,
	maxRetries int,
) *TransactionListSynchronizer {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	// The staleness threshold must stay below the poll interval so a manual
	// refresh after a send is not suppressed by cache freshness.
	if staleAfter <= 0 || staleAfter >= pollInterval {
		staleAfter = pollInterval / 3
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &TransactionListSynchronizer{
		rest:         restClient,
		unread:       unread,
		pollInterval: pollInterval,
		staleAfter:   staleAfter,
		maxRetries:   maxRetries,
		caches:       make(map[bool]*listCache),
		subscribers:  make(map[int]func()),
	}
}

// Run polls one partition until the context is cancelled. The first fetch
// happens immediately.
func (t *TransactionListSynchronizer) Run(ctx context.Context, archived bool) {
	t.Refresh(ctx, archived, true)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Refresh(ctx, archived, true)
		}
	}
}

// Refresh refetches one partition. Unless force is set, a result newer than
// the staleness threshold is reused. Transient failures are retried a bounded
// number of times before the error is surfaced; auth failures are not
// silently retried.
func (t *TransactionListSynchronizer) Refresh(ctx context.Context, archived bool, force bool) error {
	if !force {
		t.mu.Lock()
		c := t.caches[archived]
		fresh := c != nil && c.err == nil && time.Since(c.fetchedAt) < t.staleAfter
		t.mu.Unlock()
		if fresh {
			return nil
		}
	}

	var items []entity.TransactionSummary
	var err error
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		items, err = t.rest.FetchTransactions(ctx, archived)
		if err == nil {
			break
		}
		if apperrors.Is(err, "AUTH_REQUIRED") || ctx.Err() != nil {
			break
		}
		if attempt+1 < t.maxRetries {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
			}
		}
	}

	if err != nil {
		metrics.ListPollFailures.Inc()
		t.mu.Lock()
		cache := t.caches[archived]
		if cache == nil {
			cache = &listCache{}
			t.caches[archived] = cache
		}
		// Previous items and fetch time are kept so the stale view remains
		// rendered and a later manual refresh is not suppressed.
		cache.err = err
		t.mu.Unlock()

		logger.Warn("transactions poll failed (archived=%v): %v", archived, err)
		t.notify()
		return err
	}

	t.mu.Lock()
	t.caches[archived] = &listCache{items: items, fetchedAt: time.Now()}
	t.mu.Unlock()

	for _, it := range items {
		t.unread.Track(it.ConversationID)
	}
	t.notify()
	return nil
}

// Items returns the cached partition snapshot and its error state.
func (t *TransactionListSynchronizer) Items(archived bool) ([]entity.TransactionSummary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.caches[archived]
	if c == nil {
		return nil, nil
	}
	out := make([]entity.TransactionSummary, len(c.items))
	copy(out, c.items)
	return out, c.err
}

// Subscribe registers a list consumer. The returned function unsubscribes.
func (t *TransactionListSynchronizer) Subscribe(fn func()) func() {
	t.mu.Lock()
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subscribers, id)
		t.mu.Unlock()
	}
}

func (t *TransactionListSynchronizer) notify() {
	t.mu.Lock()
	fns := make([]func(), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
