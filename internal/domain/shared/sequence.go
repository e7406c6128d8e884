package shared

import (
	"context"
	"time"
)

// NumberSequence issues human-readable document numbers PREFIX-YYYYMMDD-NNNN.
type NumberSequence interface {
	Next(ctx context.Context, prefix string, day time.Time) (string, error)
}
