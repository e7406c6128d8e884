package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// newMockDB opens gorm over sqlmock with the postgres dialector.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func TestGormPaymentRecordRepository_FindByID_Mock(t *testing.T) {
	t.Run("returns nil for a missing row", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(id, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		got, err := NewGormPaymentRecordRepository(db).FindByID(context.Background(), id)
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates driver errors", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "payment_records"`).
			WillReturnError(errors.New("connection reset"))

		got, err := NewGormPaymentRecordRepository(db).FindByID(context.Background(), uuid.New())
		assert.EqualError(t, err, "connection reset")
		assert.Nil(t, got)
	})
}

func TestGormPaymentRecordRepository_SaveWithLock_Mock(t *testing.T) {
	p := &finance.PaymentRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            "PAY-20260504-0001",
		Amount:            valueobject.MustParseMoney("30.47", valueobject.CNY),
		RefundableAmount:  valueobject.Zero(valueobject.CNY),
		RefundedAmount:    valueobject.Zero(valueobject.CNY),
		Status:            finance.PaymentStatusCancelled,
		Method:            finance.PaymentMethod{Type: finance.PaymentMethodCard},
		ExpiresAt:         time.Now().UTC(),
	}
	p.Version = 2

	t.Run("stale version is a concurrency conflict", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "payment_records" SET .* WHERE \(?id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewGormPaymentRecordRepository(db).SaveWithLock(context.Background(), p, 1)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("matching version updates one row", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "payment_records" SET .* WHERE \(?id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewGormPaymentRecordRepository(db).SaveWithLock(context.Background(), p, 1)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormInvoiceRepository_FindAll_CountError(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices" WHERE status = \$1`).
		WithArgs("SENT").
		WillReturnError(errors.New("statement timeout"))

	sent := invoicing.InvoiceStatusSent
	list, total, err := NewGormInvoiceRepository(db).FindAll(context.Background(), invoicing.InvoiceFilter{Status: &sent})
	assert.EqualError(t, err, "statement timeout")
	assert.Nil(t, list)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormNumberSequence_Next_Mock(t *testing.T) {
	t.Run("formats the returned value", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`(?s)INSERT INTO document_sequences .* ON CONFLICT \(prefix, day\) DO UPDATE .* RETURNING value`).
			WithArgs("INV", "20260504").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(42))

		n, err := NewGormNumberSequence(db).Next(context.Background(), "INV", time.Date(2026, 5, 4, 23, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, "INV-20260504-0042", n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("uses the UTC day", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`INSERT INTO document_sequences`).
			WithArgs("PAY", "20260505").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(1))

		shanghai := time.FixedZone("CST", 8*3600)
		// 02:00 on the 6th in Shanghai is still the 5th in UTC.
		_, err := NewGormNumberSequence(db).Next(context.Background(), "PAY", time.Date(2026, 5, 6, 2, 0, 0, 0, shanghai))
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps driver errors", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`INSERT INTO document_sequences`).
			WillReturnError(errors.New("deadlock detected"))

		_, err := NewGormNumberSequence(db).Next(context.Background(), "RF", time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "next RF sequence")
	})
}
