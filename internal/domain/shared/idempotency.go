package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers the outcome recorded under an idempotency key so
// a replayed external call returns the first outcome instead of acting twice.
type IdempotencyStore interface {
	// Remember stores value under key if absent. Returns false when a value
	// was already stored.
	Remember(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Lookup returns the stored value and whether one exists.
	Lookup(ctx context.Context, key string) ([]byte, bool, error)

	// Forget removes a stored value.
	Forget(ctx context.Context, key string) error

	Close() error
}

// DefaultIdempotencyTTL is how long gateway outcomes are remembered.
const DefaultIdempotencyTTL = 24 * time.Hour
