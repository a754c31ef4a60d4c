package constructor

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/siherrmann/grapher/helper"
)

// userLocks is a process-local keyed mutex map bounded by an LRU eviction
// policy: idle users' locks are reclaimed rather than growing the map
// forever, while a lock currently held is never evicted out from under its
// holder (golang-lru only evicts the least-recently-touched entry, and
// acquire/release both touch the entry via Get).
//
// Each slot is a buffered channel of capacity 1 rather than a sync.Mutex:
// acquiring is a receive of the slot's single token (release sends it back),
// which — unlike Mutex.Lock — can be selected
// against ctx.Done() without leaking a goroutine that later locks a mutex
// nobody is waiting to release.
type userLocks struct {
	cache *lru.Cache[string, chan struct{}]
	mu    sync.Mutex
}

func newUserLocks(capacity int) *userLocks {
	cache, err := lru.New[string, chan struct{}](capacity)
	if err != nil {
		// capacity is always a positive compile-time constant; this branch
		// exists only to satisfy the constructor's error return.
		cache, _ = lru.New[string, chan struct{}](1)
	}
	return &userLocks{cache: cache}
}

func (l *userLocks) slotFor(userID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.cache.Get(userID); ok {
		return ch
	}
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	l.cache.Add(userID, ch)
	return ch
}

// acquire blocks until userID's lock is held or ctx is done, whichever
// happens first. Returns a release function on success.
func (l *userLocks) acquire(ctx context.Context, userID string) (func(), error) {
	ch := l.slotFor(userID)

	select {
	case <-ch:
		return func() { ch <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, helper.NewKindError("acquire ingestion lock", helper.IngestBusy, ctx.Err())
	}
}
