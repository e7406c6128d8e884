package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/infrastructure/persistence/models"
)

// GormRefundRepository implements finance.RefundRepository using GORM
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// FindByID finds a refund by ID, or nil when absent.
func (r *GormRefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Refund, error) {
	var model models.RefundModel
	found, err := notFoundAsNil(r.db.WithContext(ctx).First(&model, "id = ?", id).Error)
	if !found {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPayment lists refunds of a payment, oldest first.
func (r *GormRefundRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]finance.Refund, error) {
	var refundModels []models.RefundModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC, id ASC").
		Find(&refundModels).Error; err != nil {
		return nil, err
	}
	refunds := make([]finance.Refund, len(refundModels))
	for i := range refundModels {
		refunds[i] = *refundModels[i].ToDomain()
	}
	return refunds, nil
}

// Save creates or updates a refund
func (r *GormRefundRepository) Save(ctx context.Context, refund *finance.Refund) error {
	return r.db.WithContext(ctx).Save(models.RefundModelFromDomain(refund)).Error
}

// SaveWithLock saves only if the stored version equals expectedVersion.
func (r *GormRefundRepository) SaveWithLock(ctx context.Context, refund *finance.Refund, expectedVersion int) error {
	return updateVersioned(ctx, r.db, &models.RefundModel{}, models.RefundModelFromDomain(refund), refund.ID, expectedVersion)
}

var _ finance.RefundRepository = (*GormRefundRepository)(nil)
