package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netbill/backend/internal/domain/shared"
)

// InMemoryLocker is a keyed mutex for single-instance deployments. The ttl
// argument is ignored: a lock is held until released.
type InMemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewInMemoryLocker creates an empty locker.
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{locks: make(map[string]*keyLock)}
}

// Acquire blocks until key is free or ctx is done.
func (l *InMemoryLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	kl := l.ref(key)
	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, shared.ErrLockNotAcquired.WithMessage(fmt.Sprintf("lock %s is held by another operation", key))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			l.unref(key)
		})
	}, nil
}

func (l *InMemoryLocker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *InMemoryLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kl, ok := l.locks[key]; ok {
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
	}
}

// Held returns the number of keys with a holder or waiter.
func (l *InMemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ shared.Locker = (*InMemoryLocker)(nil)
