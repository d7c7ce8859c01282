package provider

import (
	"errors"
	"fmt"

	"github.com/lumapix/payments-service/internal/domain"
)

// Error is an upstream payment API failure.
type Error struct {
	Provider   domain.Provider
	Code       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error [%s]: %s (status: %d)", e.Provider, e.Code, e.Message, e.StatusCode)
}

func (e *Error) IsRetryable() bool {
	return e.StatusCode >= 500
}

func IsProviderError(err error) (*Error, bool) {
	var provErr *Error
	ok := errors.As(err, &provErr)
	return provErr, ok
}

// ErrSignatureMismatch marks a webhook whose signature did not verify; the
// only condition a webhook endpoint answers non-200 for.
var ErrSignatureMismatch = errors.New("webhook signature mismatch")
