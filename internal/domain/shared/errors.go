package shared

import "errors"

// ErrorKind groups domain error codes into the categories callers react to.
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION"
	KindState      ErrorKind = "STATE"
	KindBalance    ErrorKind = "BALANCE"
	KindGateway    ErrorKind = "GATEWAY"
	KindCurrency   ErrorKind = "CURRENCY"
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindConflict   ErrorKind = "CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped copies with a different
// message still satisfy errors.Is against the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error of the validation kind
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    KindValidation,
		Message: message,
	}
}

// NewKindError creates a domain error with an explicit kind
func NewKindError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// WithMessage returns a copy of the error carrying a more specific message.
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Code: e.Code, Kind: e.Kind, Message: message}
}

// KindOf returns the kind of a domain error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Common domain errors
var (
	ErrNotFound            = NewKindError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewKindError(KindConflict, "ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewKindError(KindConflict, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewKindError(KindState, "INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientBalance = NewKindError(KindBalance, "INSUFFICIENT_BALANCE", "Insufficient refundable balance")
	ErrCurrencyMismatch    = NewKindError(KindCurrency, "CURRENCY_MISMATCH", "Currency mismatch")
	ErrLockNotAcquired     = NewKindError(KindConflict, "LOCK_NOT_ACQUIRED", "Resource is locked by another operation")
)
