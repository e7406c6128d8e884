package shared

import (
	"context"
	"time"
)

// Locker serializes work on a single key (for example one payment's refund
// stream) across goroutines and, for distributed implementations, processes.
type Locker interface {
	// Acquire blocks until the lock for key is held, ctx is done, or the
	// implementation gives up. The returned release func is safe to call once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
