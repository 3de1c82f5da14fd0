// Package locks serializes operations per key, in process or across instances
package locks

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Release frees an acquired lock
type Release func(ctx context.Context) error

// Locker grants exclusive access per key
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits on them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewLocalLocker creates an empty keyed mutex
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

// Acquire blocks until key is free or ctx is done
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &keyLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.unref(key, lock)
		return nil, err
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			lock.sem.Release(1)
			l.unref(key, lock)
		})
		return nil
	}, nil
}

func (l *LocalLocker) unref(key string, lock *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}

// size reports tracked keys
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
