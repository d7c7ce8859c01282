package domain

import (
	"fmt"
)

// DomainError represents a business rule violation.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeTerminalTransaction = "TERMINAL_TRANSACTION"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeMissingCurrency     = "MISSING_CURRENCY"
	ErrCodeEmptyCheckout       = "EMPTY_CHECKOUT"
	ErrCodeWalletNotFound      = "WALLET_NOT_FOUND"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodePayoutsPaused       = "PAYOUTS_PAUSED"
)

// Sentinel instances for the conditions callers branch on with errors.Is.
var (
	ErrInvalidAmount = &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: "amount must be a positive number of minor units",
	}
	ErrMissingCurrency = &DomainError{
		Code:    ErrCodeMissingCurrency,
		Message: "currency is required",
	}
	ErrEmptyCheckout = &DomainError{
		Code:    ErrCodeEmptyCheckout,
		Message: "checkout must contain credits or line items",
	}
	ErrTerminalTransaction = &DomainError{
		Code:    ErrCodeTerminalTransaction,
		Message: "transaction is already in a terminal state",
	}
	ErrWalletNotFound = &DomainError{
		Code:    ErrCodeWalletNotFound,
		Message: "wallet not found",
	}
	ErrInsufficientBalance = &DomainError{
		Code:    ErrCodeInsufficientBalance,
		Message: "wallet balance is lower than the requested debit",
	}
	ErrPayoutsPaused = &DomainError{
		Code:    ErrCodePayoutsPaused,
		Message: "payout processing is paused",
	}
)

func NewInvalidTransitionError(from, to string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}
