package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/netbill/backend/internal/domain/shared"
)

// GormNumberSequence issues PREFIX-YYYYMMDD-NNNN numbers from the
// document_sequences table. The upsert increments atomically, so concurrent
// callers never receive the same number.
type GormNumberSequence struct {
	db *gorm.DB
}

// NewGormNumberSequence creates a new GormNumberSequence
func NewGormNumberSequence(db *gorm.DB) *GormNumberSequence {
	return &GormNumberSequence{db: db}
}

const nextSequenceSQL = `INSERT INTO document_sequences (prefix, day, value) VALUES (?, ?, 1)
ON CONFLICT (prefix, day) DO UPDATE SET value = document_sequences.value + 1
RETURNING value`

// Next returns the next number for prefix on day (UTC).
func (s *GormNumberSequence) Next(ctx context.Context, prefix string, day time.Time) (string, error) {
	if prefix == "" {
		return "", shared.ErrInvalidInput.WithMessage("sequence prefix cannot be empty")
	}
	stamp := day.UTC().Format("20060102")

	var value int64
	if err := s.db.WithContext(ctx).Raw(nextSequenceSQL, prefix, stamp).Scan(&value).Error; err != nil {
		return "", fmt.Errorf("next %s sequence: %w", prefix, err)
	}
	if value == 0 {
		return "", fmt.Errorf("next %s sequence: no value returned", prefix)
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, stamp, value), nil
}

var _ shared.NumberSequence = (*GormNumberSequence)(nil)
