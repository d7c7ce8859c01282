package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeIdempotencyConflict  = "IDEMPOTENCY_CONFLICT"
	ErrCodeIdempotencyInFlight  = "IDEMPOTENCY_IN_FLIGHT"
	ErrCodeProvider             = "PROVIDER_ERROR"
	ErrCodePersistence          = "PERSISTENCE_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodePermissionDenied     = "PERMISSION_DENIED"
	ErrCodePayoutsPaused        = "PAYOUTS_PAUSED"
	ErrCodeBatchInProgress      = "BATCH_IN_PROGRESS"
	ErrCodeInternal             = "INTERNAL_ERROR"
	ErrCodeNoGatewayForRoute    = "NO_GATEWAY_FOR_ROUTE"
	ErrCodeGatewayDisabled      = "GATEWAY_DISABLED"
	ErrCodeSignatureVerify      = "SIGNATURE_VERIFICATION_FAILED"
	ErrCodeIdempotencyKeyAbsent = "IDEMPOTENCY_KEY_REQUIRED"
)

// GatewaySelectionError means no provider could be chosen for a route. It is
// always fail-closed: callers surface 503 instead of falling back to a
// default provider.
type GatewaySelectionError struct {
	Code       string
	FailClosed bool
}

func (e *GatewaySelectionError) Error() string {
	return fmt.Sprintf("gateway selection failed [%s]", e.Code)
}

func IsGatewaySelectionError(err error) (*GatewaySelectionError, bool) {
	var selErr *GatewaySelectionError
	ok := errors.As(err, &selErr)
	return selErr, ok
}

func NewValidationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeValidation,
		Message:    "Invalid request",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewIdempotencyConflictError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyConflict,
		Message:    "Idempotency key reused with different request parameters",
		HTTPStatus: http.StatusConflict,
	}
}

func NewIdempotencyInFlightError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyInFlight,
		Message:    "A request with this idempotency key is still processing. Retry later.",
		HTTPStatus: http.StatusConflict,
	}
}

func NewProviderError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeProvider,
		Message:    "Payment provider request failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewPersistenceError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePersistence,
		Message:    "Storage operation failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewNotFoundError(what string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    what + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

func NewPermissionDeniedError(action string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePermissionDenied,
		Message:    "Operator token lacks permission for action " + action,
		HTTPStatus: http.StatusForbidden,
	}
}

func NewPayoutsPausedError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodePayoutsPaused,
		Message:    "Payout processing is paused",
		HTTPStatus: http.StatusConflict,
	}
}

func NewBatchInProgressError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeBatchInProgress,
		Message:    "A payout batch is already running",
		HTTPStatus: http.StatusConflict,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewSignatureError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeSignatureVerify,
		Message:    "Webhook signature verification failed",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
