package dto

import (
	"context"
	"errors"
	"net/http"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared"
)

// Error codes returned in ErrorInfo.Code. Domain errors keep their own code;
// these cover failures that do not originate in the domain.
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeNotFound   = "ERR_NOT_FOUND"
	ErrCodeGateway    = "ERR_GATEWAY"
	// ErrCodeGatewayUnknown means the gateway may have applied the request.
	ErrCodeGatewayUnknown = "ERR_GATEWAY_OUTCOME_UNKNOWN"
	ErrCodeTimeout        = "ERR_TIMEOUT"
	ErrCodeTooLarge       = "ERR_REQUEST_TOO_LARGE"
)

var kindStatus = map[shared.ErrorKind]int{
	shared.KindValidation: http.StatusBadRequest,
	shared.KindState:      http.StatusUnprocessableEntity,
	shared.KindBalance:    http.StatusUnprocessableEntity,
	shared.KindCurrency:   http.StatusUnprocessableEntity,
	shared.KindGateway:    http.StatusBadGateway,
	shared.KindNotFound:   http.StatusNotFound,
	shared.KindConflict:   http.StatusConflict,
}

// StatusForKind maps a domain error kind to an HTTP status.
func StatusForKind(kind shared.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorFor translates err into a status, code and client-safe message.
// Unknown errors become a generic 500 so internals never leak.
func ErrorFor(err error) (status int, code, message string) {
	if ge, ok := finance.AsGatewayError(err); ok {
		if ge.UnknownOutcome {
			return http.StatusBadGateway, ErrCodeGatewayUnknown, ge.Error()
		}
		return http.StatusBadGateway, ErrCodeGateway, ge.Error()
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return StatusForKind(de.Kind), de.Code, de.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, ErrCodeTimeout, "The request timed out"
	}
	return http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred"
}
