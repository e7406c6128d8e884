package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	specific := ErrInsufficientBalance.WithMessage("refund 70.00 exceeds refundable 60.00")
	wrapped := fmt.Errorf("approve refund: %w", specific)

	assert.True(t, errors.Is(wrapped, ErrInsufficientBalance))
	assert.False(t, errors.Is(wrapped, ErrInvalidState))
	assert.Equal(t, KindBalance, KindOf(wrapped))
	assert.Equal(t, "refund 70.00 exceeds refundable 60.00", specific.Error())
}

func TestKindOf_NonDomainError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
}

func TestFilter_Normalize(t *testing.T) {
	f := Filter{Page: 0, PageSize: 1000, OrderDir: "sideways"}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.PageSize)
	assert.Equal(t, "desc", f.OrderDir)
	assert.Equal(t, "created_at", f.OrderBy)
	assert.Equal(t, 0, f.Offset())

	f = Filter{Page: 3, PageSize: 10, OrderDir: "asc", OrderBy: "number"}.Normalize()
	assert.Equal(t, 20, f.Offset())
	assert.Equal(t, "asc", f.OrderDir)
}
