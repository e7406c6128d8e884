package invoicing

import "github.com/netbill/backend/internal/domain/shared"

var (
	ErrInvalidDescription = shared.NewDomainError("INVALID_DESCRIPTION", "Item description cannot be empty")
	ErrInvalidQuantity    = shared.NewDomainError("INVALID_QUANTITY", "Item quantity must be positive")
	ErrInvalidUnitPrice   = shared.NewDomainError("INVALID_UNIT_PRICE", "Item unit price cannot be negative")
	ErrInvalidPeriod      = shared.NewDomainError("INVALID_PERIOD", "Item period end must not precede its start")
	ErrNoItems            = shared.NewDomainError("NO_ITEMS", "Invoice requires at least one item")
	ErrInvalidTaxRule     = shared.NewDomainError("INVALID_TAX_RULE", "Invalid tax rule")
	ErrInvalidDiscount    = shared.NewDomainError("INVALID_DISCOUNT", "Invalid discount")
	ErrInvalidDueDate     = shared.NewDomainError("INVALID_DUE_DATE", "Due date must not precede the issue date")
	ErrInvalidUser        = shared.NewDomainError("INVALID_USER", "Invoice requires a user")
	ErrInvoiceNotDraft    = shared.NewKindError(shared.KindState, "INVOICE_NOT_DRAFT", "Only draft invoices can be changed")
	ErrIllegalTransition  = shared.NewKindError(shared.KindState, "ILLEGAL_TRANSITION", "Invoice status transition is not allowed")
)
