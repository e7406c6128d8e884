package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/netbill/backend/internal/domain/shared"
)

// applyPaging orders and pages q. Only columns listed in sortable may be
// used for ordering; anything else falls back to created_at.
func applyPaging(q *gorm.DB, f shared.Filter, sortable map[string]string) *gorm.DB {
	f = f.Normalize()
	column, ok := sortable[f.OrderBy]
	if !ok {
		column = "created_at"
	}
	return q.Order(fmt.Sprintf("%s %s, id %s", column, f.OrderDir, f.OrderDir)).
		Offset(f.Offset()).
		Limit(f.PageSize)
}

// updateVersioned writes model over the row with id only while the stored
// version still equals expected.
func updateVersioned(ctx context.Context, tx *gorm.DB, table any, model any, id any, expected int) error {
	result := tx.WithContext(ctx).
		Model(table).
		Where("id = ? AND version = ?", id, expected).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// notFoundAsNil maps gorm's record-not-found to a nil error.
func notFoundAsNil(err error) (bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
