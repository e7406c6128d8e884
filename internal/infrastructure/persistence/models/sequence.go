package models

// DocumentSequenceModel holds the last number issued per prefix and day.
type DocumentSequenceModel struct {
	Prefix string `gorm:"type:varchar(8);primaryKey"`
	Day    string `gorm:"type:varchar(8);primaryKey"` // YYYYMMDD
	Value  int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// All lists every model, in dependency order, for AutoMigrate in tests and
// local development. Production schemas come from the SQL migrations.
func All() []any {
	return []any{
		&RatePlanModel{},
		&RateModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
		&PaymentRecordModel{},
		&RefundModel{},
		&OutboxEntryModel{},
		&DocumentSequenceModel{},
	}
}
