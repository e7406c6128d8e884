package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	Number        string     `gorm:"type:varchar(32);index"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	Currency      string     `gorm:"type:varchar(3);not null"`
	Status        string     `gorm:"type:varchar(20);not null;index"`
	IssueDate     time.Time  `gorm:"not null"`
	DueDate       time.Time  `gorm:"not null;index"`
	PaidDate      *time.Time
	TaxRules      []byte `gorm:"type:jsonb"`
	Discounts     []byte `gorm:"type:jsonb"`
	SubtotalMinor int64  `gorm:"not null"`
	TaxMinor      int64  `gorm:"not null"`
	DiscountMinor int64  `gorm:"not null"`
	TotalMinor    int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceItemModel is one priced line of an invoice.
type InvoiceItemModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position       int             `gorm:"not null"`
	Description    string          `gorm:"type:varchar(500);not null"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	UnitPriceMinor int64           `gorm:"not null"`
	TotalMinor     int64           `gorm:"not null"`
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// InvoiceModelFromDomain converts an invoice into its row and item rows.
func InvoiceModelFromDomain(inv *invoicing.Invoice) (*InvoiceModel, []InvoiceItemModel, error) {
	taxRules, err := marshalList(inv.TaxRules)
	if err != nil {
		return nil, nil, fmt.Errorf("encode tax rules: %w", err)
	}
	discounts, err := marshalList(inv.Discounts)
	if err != nil {
		return nil, nil, fmt.Errorf("encode discounts: %w", err)
	}

	m := &InvoiceModel{
		Number:        inv.Number,
		UserID:        inv.UserID,
		Currency:      inv.Currency.String(),
		Status:        inv.Status.String(),
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		PaidDate:      inv.PaidDate,
		TaxRules:      taxRules,
		Discounts:     discounts,
		SubtotalMinor: inv.Subtotal.MinorUnits(),
		TaxMinor:      inv.TaxAmount.MinorUnits(),
		DiscountMinor: inv.DiscountAmount.MinorUnits(),
		TotalMinor:    inv.Total.MinorUnits(),
	}
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)

	items := make([]InvoiceItemModel, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = InvoiceItemModel{
			ID:             it.ID,
			InvoiceID:      inv.ID,
			Position:       i,
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitPriceMinor: it.UnitPrice.MinorUnits(),
			TotalMinor:     it.Total.MinorUnits(),
			PeriodStart:    optionalTime(it.PeriodStart),
			PeriodEnd:      optionalTime(it.PeriodEnd),
		}
	}
	return m, items, nil
}

// ToDomain rebuilds the invoice. items must be ordered by Position.
func (m *InvoiceModel) ToDomain(items []InvoiceItemModel) (*invoicing.Invoice, error) {
	cur := valueobject.Currency(m.Currency)
	inv := &invoicing.Invoice{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		UserID:            m.UserID,
		Currency:          cur,
		Status:            invoicing.InvoiceStatus(m.Status),
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		PaidDate:          m.PaidDate,
		Subtotal:          valueobject.NewMoney(m.SubtotalMinor, cur),
		TaxAmount:         valueobject.NewMoney(m.TaxMinor, cur),
		DiscountAmount:    valueobject.NewMoney(m.DiscountMinor, cur),
		Total:             valueobject.NewMoney(m.TotalMinor, cur),
		Items:             make([]invoicing.InvoiceItem, 0, len(items)),
	}
	if len(m.TaxRules) > 0 {
		if err := json.Unmarshal(m.TaxRules, &inv.TaxRules); err != nil {
			return nil, fmt.Errorf("decode tax rules of invoice %s: %w", m.ID, err)
		}
	}
	if len(m.Discounts) > 0 {
		if err := json.Unmarshal(m.Discounts, &inv.Discounts); err != nil {
			return nil, fmt.Errorf("decode discounts of invoice %s: %w", m.ID, err)
		}
	}
	for _, im := range items {
		inv.Items = append(inv.Items, invoicing.InvoiceItem{
			ID:          im.ID,
			InvoiceID:   im.InvoiceID,
			Description: im.Description,
			Quantity:    im.Quantity,
			UnitPrice:   valueobject.NewMoney(im.UnitPriceMinor, cur),
			Total:       valueobject.NewMoney(im.TotalMinor, cur),
			PeriodStart: timeOrZero(im.PeriodStart),
			PeriodEnd:   timeOrZero(im.PeriodEnd),
		})
	}
	return inv, nil
}

func marshalList[T any](list []T) ([]byte, error) {
	if len(list) == 0 {
		return nil, nil
	}
	return json.Marshal(list)
}
