package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/infrastructure/persistence/models"
)

var invoiceSortable = map[string]string{
	"created_at": "created_at",
	"issue_date": "issue_date",
	"due_date":   "due_date",
	"number":     "number",
	"total":      "total_minor",
}

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID returns the invoice with its items, or nil when absent.
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByNumber finds an invoice by its human-readable number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*invoicing.Invoice, error) {
	return r.findOne(ctx, "number = ?", number)
}

func (r *GormInvoiceRepository) findOne(ctx context.Context, cond string, arg any) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	found, err := notFoundAsNil(r.db.WithContext(ctx).First(&model, cond, arg).Error)
	if !found {
		return nil, err
	}
	invoices, err := r.withItems(ctx, []models.InvoiceModel{model})
	if err != nil {
		return nil, err
	}
	return &invoices[0], nil
}

// FindAll lists invoices matching filter
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
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

	var invoiceModels []models.InvoiceModel
	if err := applyPaging(query, filter.Filter, invoiceSortable).Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}
	invoices, err := r.withItems(ctx, invoiceModels)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// FindOverdue returns sent invoices whose due date is before now, oldest first.
func (r *GormInvoiceRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", invoicing.InvoiceStatusSent.String(), now).
		Order("due_date ASC").
		Limit(limit).
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return r.withItems(ctx, invoiceModels)
}

func (r *GormInvoiceRepository) withItems(ctx context.Context, invoiceModels []models.InvoiceModel) ([]invoicing.Invoice, error) {
	if len(invoiceModels) == 0 {
		return []invoicing.Invoice{}, nil
	}
	ids := make([]uuid.UUID, len(invoiceModels))
	for i, m := range invoiceModels {
		ids[i] = m.ID
	}

	var itemModels []models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id IN ?", ids).
		Order("invoice_id, position").
		Find(&itemModels).Error; err != nil {
		return nil, err
	}
	byInvoice := make(map[uuid.UUID][]models.InvoiceItemModel, len(invoiceModels))
	for _, im := range itemModels {
		byInvoice[im.InvoiceID] = append(byInvoice[im.InvoiceID], im)
	}

	invoices := make([]invoicing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		inv, err := invoiceModels[i].ToDomain(byInvoice[invoiceModels[i].ID])
		if err != nil {
			return nil, err
		}
		invoices[i] = *inv
	}
	return invoices, nil
}

// Save inserts or overwrites the invoice and replaces its items.
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	model, items, err := models.InvoiceModelFromDomain(inv)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		return replaceItems(tx, inv.ID, items)
	})
}

// SaveWithLock saves the invoice only if the stored version equals expectedVersion.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice, expectedVersion int) error {
	model, items, err := models.InvoiceModelFromDomain(inv)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateVersioned(ctx, tx, &models.InvoiceModel{}, model, inv.ID, expectedVersion); err != nil {
			return err
		}
		return replaceItems(tx, inv.ID, items)
	})
}

// Delete removes the invoice and its items
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.InvoiceModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func replaceItems(tx *gorm.DB, invoiceID uuid.UUID, items []models.InvoiceItemModel) error {
	if err := tx.Where("invoice_id = ?", invoiceID).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return tx.Create(&items).Error
}

var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
