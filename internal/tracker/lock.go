package tracker

import (
	"context"
	"sync"
)

type lockEntry struct {
	sem  chan struct{}
	refs int // holders plus waiters
}

// KeyedLock provides mutual exclusion per key. Acquisition honours context
// cancellation and entries are dropped once no goroutine holds or waits on them.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewKeyedLock creates an empty KeyedLock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the lock for key is acquired or ctx is done.
// The returned function releases the lock and must be called exactly once.
func (l *KeyedLock) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				l.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *KeyedLock) release(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// held returns the number of keys currently held or waited on.
func (l *KeyedLock) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
