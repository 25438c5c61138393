package accounting

import (
	"context"
	"sync"
)

// groupLocks serializes mutations per group inside this process. Waiting
// for a lock honours context cancellation; entries are dropped once no
// caller holds or waits for them.
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*groupLock
}

type groupLock struct {
	sem  chan struct{}
	refs int
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[string]*groupLock)}
}

// acquire blocks until the lock for groupID is held or ctx is done. The
// returned release func must be called exactly once.
func (l *groupLocks) acquire(ctx context.Context, groupID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[groupID]
	if !ok {
		lk = &groupLock{sem: make(chan struct{}, 1)}
		l.locks[groupID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		return func() {
			<-lk.sem
			l.unref(groupID, lk)
		}, nil
	case <-ctx.Done():
		l.unref(groupID, lk)
		return nil, ctx.Err()
	}
}

func (l *groupLocks) unref(groupID string, lk *groupLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, groupID)
	}
}

// size reports how many groups currently have a lock entry.
func (l *groupLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
