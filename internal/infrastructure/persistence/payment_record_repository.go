package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/infrastructure/persistence/models"
)

var paymentSortable = map[string]string{
	"created_at": "created_at",
	"amount":     "amount_minor",
	"expires_at": "expires_at",
	"number":     "number",
}

// GormPaymentRecordRepository implements finance.PaymentRecordRepository using GORM
type GormPaymentRecordRepository struct {
	db *gorm.DB
}

// NewGormPaymentRecordRepository creates a new GormPaymentRecordRepository
func NewGormPaymentRecordRepository(db *gorm.DB) *GormPaymentRecordRepository {
	return &GormPaymentRecordRepository{db: db}
}

// FindByID finds a payment record by ID, or nil when absent.
func (r *GormPaymentRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.PaymentRecord, error) {
	var model models.PaymentRecordModel
	found, err := notFoundAsNil(r.db.WithContext(ctx).First(&model, "id = ?", id).Error)
	if !found {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a payment record by its number
func (r *GormPaymentRecordRepository) FindByNumber(ctx context.Context, number string) (*finance.PaymentRecord, error) {
	var model models.PaymentRecordModel
	found, err := notFoundAsNil(r.db.WithContext(ctx).First(&model, "number = ?", number).Error)
	if !found {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoice lists the payments opened against an invoice, oldest first.
func (r *GormPaymentRecordRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]finance.PaymentRecord, error) {
	var paymentModels []models.PaymentRecordModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return toPayments(paymentModels), nil
}

// FindExpiredPending returns pending payments whose expiry is not after now.
func (r *GormPaymentRecordRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]finance.PaymentRecord, error) {
	var paymentModels []models.PaymentRecordModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", finance.PaymentStatusPending.String(), now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return toPayments(paymentModels), nil
}

// FindAll lists payments matching filter
func (r *GormPaymentRecordRepository) FindAll(ctx context.Context, filter finance.PaymentFilter) ([]finance.PaymentRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentRecordModel{})
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var paymentModels []models.PaymentRecordModel
	if err := applyPaging(query, filter.Filter, paymentSortable).Find(&paymentModels).Error; err != nil {
		return nil, 0, err
	}
	return toPayments(paymentModels), total, nil
}

// Save creates or updates a payment record
func (r *GormPaymentRecordRepository) Save(ctx context.Context, p *finance.PaymentRecord) error {
	return r.db.WithContext(ctx).Save(models.PaymentRecordModelFromDomain(p)).Error
}

// SaveWithLock saves only if the stored version equals expectedVersion.
func (r *GormPaymentRecordRepository) SaveWithLock(ctx context.Context, p *finance.PaymentRecord, expectedVersion int) error {
	return updateVersioned(ctx, r.db, &models.PaymentRecordModel{}, models.PaymentRecordModelFromDomain(p), p.ID, expectedVersion)
}

func toPayments(ms []models.PaymentRecordModel) []finance.PaymentRecord {
	out := make([]finance.PaymentRecord, len(ms))
	for i := range ms {
		out[i] = *ms[i].ToDomain()
	}
	return out
}

var _ finance.PaymentRecordRepository = (*GormPaymentRecordRepository)(nil)
