// Package lock keeps two sweeps from working on the same (address, asset) pair at once.
package lock

import (
	"context"
	"sync"
)

// Locker acquires a named lock without waiting. ok is false when someone else holds it.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// MemoryLocker is a single-process Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
