package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// PaymentRecordModel is the persistence model for the PaymentRecord aggregate root.
type PaymentRecordModel struct {
	AggregateModel
	Number          string    `gorm:"type:varchar(32);index"`
	InvoiceID       uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index"`
	AmountMinor     int64     `gorm:"not null"`
	Currency        string    `gorm:"type:varchar(3);not null"`
	MethodType      string    `gorm:"type:varchar(20);not null"`
	MethodReference string    `gorm:"type:varchar(100)"`
	Status          string    `gorm:"type:varchar(20);not null;index:idx_payment_status_expiry,priority:1"`
	RefundableMinor int64     `gorm:"not null"`
	RefundedMinor   int64     `gorm:"not null"`
	TransactionID   string    `gorm:"type:varchar(100)"`
	FailureReason   string    `gorm:"type:varchar(500)"`
	CancelReason    string    `gorm:"type:varchar(500)"`
	Gateway         string    `gorm:"type:varchar(30)"`
	ExpiresAt       time.Time `gorm:"not null;index:idx_payment_status_expiry,priority:2"`
	PaidAt          *time.Time
	Attempts        int    `gorm:"not null;default:1"`
	ChargeKey       string `gorm:"type:varchar(80)"`
	OutcomeUnknown  bool   `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (PaymentRecordModel) TableName() string {
	return "payment_records"
}

// PaymentRecordModelFromDomain creates a persistence model from a payment record
func PaymentRecordModelFromDomain(p *finance.PaymentRecord) *PaymentRecordModel {
	m := &PaymentRecordModel{
		Number:          p.Number,
		InvoiceID:       p.InvoiceID,
		UserID:          p.UserID,
		AmountMinor:     p.Amount.MinorUnits(),
		Currency:        p.Amount.Currency().String(),
		MethodType:      string(p.Method.Type),
		MethodReference: p.Method.Reference,
		Status:          p.Status.String(),
		RefundableMinor: p.RefundableAmount.MinorUnits(),
		RefundedMinor:   p.RefundedAmount.MinorUnits(),
		TransactionID:   p.TransactionID,
		FailureReason:   p.FailureReason,
		CancelReason:    p.CancelReason,
		Gateway:         p.Gateway,
		ExpiresAt:       p.ExpiresAt,
		PaidAt:          p.PaidAt,
		Attempts:        p.Attempts,
		ChargeKey:       p.ChargeKey,
		OutcomeUnknown:  p.OutcomeUnknown,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}

// ToDomain converts the model back to a payment record
func (m *PaymentRecordModel) ToDomain() *finance.PaymentRecord {
	cur := valueobject.Currency(m.Currency)
	return &finance.PaymentRecord{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		InvoiceID:         m.InvoiceID,
		UserID:            m.UserID,
		Amount:            valueobject.NewMoney(m.AmountMinor, cur),
		Method: finance.PaymentMethod{
			Type:      finance.PaymentMethodType(m.MethodType),
			Reference: m.MethodReference,
		},
		Status:           finance.PaymentStatus(m.Status),
		RefundableAmount: valueobject.NewMoney(m.RefundableMinor, cur),
		RefundedAmount:   valueobject.NewMoney(m.RefundedMinor, cur),
		TransactionID:    m.TransactionID,
		FailureReason:    m.FailureReason,
		CancelReason:     m.CancelReason,
		Gateway:          m.Gateway,
		ExpiresAt:        m.ExpiresAt,
		PaidAt:           m.PaidAt,
		Attempts:         m.Attempts,
		ChargeKey:        m.ChargeKey,
		OutcomeUnknown:   m.OutcomeUnknown,
	}
}

// RefundModel is the persistence model for the Refund aggregate root.
type RefundModel struct {
	AggregateModel
	Number          string    `gorm:"type:varchar(32);index"`
	PaymentID       uuid.UUID `gorm:"type:uuid;not null;index"`
	AmountMinor     int64     `gorm:"not null"`
	Currency        string    `gorm:"type:varchar(3);not null"`
	Status          string    `gorm:"type:varchar(20);not null;index"`
	Reason          string    `gorm:"type:varchar(500);not null"`
	RejectionReason string    `gorm:"type:varchar(500)"`
	ApprovedBy      string    `gorm:"type:varchar(100)"`
	ApprovedAt      *time.Time
	ProcessedAt     *time.Time
	TransactionID   string `gorm:"type:varchar(100)"`
	FailureReason   string `gorm:"type:varchar(500)"`
	OutcomeUnknown  bool   `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (RefundModel) TableName() string {
	return "refunds"
}

// RefundModelFromDomain creates a persistence model from a refund
func RefundModelFromDomain(r *finance.Refund) *RefundModel {
	m := &RefundModel{
		Number:          r.Number,
		PaymentID:       r.PaymentID,
		AmountMinor:     r.Amount.MinorUnits(),
		Currency:        r.Amount.Currency().String(),
		Status:          string(r.Status),
		Reason:          r.Reason,
		RejectionReason: r.RejectionReason,
		ApprovedBy:      r.ApprovedBy,
		ApprovedAt:      r.ApprovedAt,
		ProcessedAt:     r.ProcessedAt,
		TransactionID:   r.TransactionID,
		FailureReason:   r.FailureReason,
		OutcomeUnknown:  r.OutcomeUnknown,
	}
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	return m
}

// ToDomain converts the model back to a refund
func (m *RefundModel) ToDomain() *finance.Refund {
	return &finance.Refund{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		PaymentID:         m.PaymentID,
		Amount:            valueobject.NewMoney(m.AmountMinor, valueobject.Currency(m.Currency)),
		Status:            finance.RefundStatus(m.Status),
		Reason:            m.Reason,
		RejectionReason:   m.RejectionReason,
		ApprovedBy:        m.ApprovedBy,
		ApprovedAt:        m.ApprovedAt,
		ProcessedAt:       m.ProcessedAt,
		TransactionID:     m.TransactionID,
		FailureReason:     m.FailureReason,
		OutcomeUnknown:    m.OutcomeUnknown,
	}
}
