package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/lumapix/payments-service/internal/domain"
)

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	if selErr, ok := IsGatewaySelectionError(err); ok && selErr.FailClosed {
		return http.StatusServiceUnavailable
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrMissingCurrency),
		errors.Is(err, domain.ErrEmptyCheckout):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrTerminalTransaction),
		errors.Is(err, domain.ErrPayoutsPaused):
		return http.StatusConflict

	case errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, domain.ErrWalletNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		if domainErr.Code == domain.ErrCodeInvalidTransition {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// ToErrorCode returns a stable machine-readable code for API responses.
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	if selErr, ok := IsGatewaySelectionError(err); ok {
		return selErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	switch {
	case errors.Is(err, ErrTransactionNotFound):
		return "TRANSACTION_NOT_FOUND"
	case errors.Is(err, ErrDuplicateProviderRef):
		return "DUPLICATE_PROVIDER_REF"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	}

	return ErrCodeInternal
}
