// Package keylock serializes work per key in arrival order.
package keylock

import (
	"context"
	"sync"
)

type KeyLock struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func New() *KeyLock {
	return &KeyLock{tails: make(map[string]chan struct{})}
}

// Lock blocks until every earlier Lock call for key has been released.
// The returned function releases the lock and is safe to call more than once.
// If ctx ends while waiting, the caller's place in the queue is handed to the
// next waiter once the predecessor releases.
func (l *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	done := make(chan struct{})

	l.mu.Lock()
	prev := l.tails[key]
	l.tails[key] = done
	l.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { l.release(key, done) })
	}

	if prev == nil {
		return release, nil
	}

	select {
	case <-prev:
		return release, nil
	case <-ctx.Done():
		go func() {
			<-prev
			release()
		}()
		return nil, ctx.Err()
	}
}

func (l *KeyLock) release(key string, done chan struct{}) {
	l.mu.Lock()
	if l.tails[key] == done {
		delete(l.tails, key)
	}
	l.mu.Unlock()
	close(done)
}
