// Package keylock provides exclusive sections keyed by an int64, with
// cancellable waiting.
package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Locker hands out one exclusive section per key. Sections for different
// keys are independent. The zero value is ready to use.
type Locker struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{entries: make(map[int64]*entry)}
}

// Lock waits until the caller holds key exclusively. If ctx ends first,
// nothing is held and ctx.Err() is returned.
func (l *Locker) Lock(ctx context.Context, key int64) (unlock func(), err error) {
	e := l.acquire(key)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.release(key, e)
		})
	}, nil
}

// Len reports how many keys are currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Locker) acquire(key int64) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries == nil {
		l.entries = make(map[int64]*entry)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(key int64, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
