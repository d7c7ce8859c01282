package domain

import (
	"time"
)

// TransactionStatus represents the current state of a purchase attempt.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxSucceeded TransactionStatus = "SUCCEEDED"
	TxFailed    TransactionStatus = "FAILED"
	TxRefunded  TransactionStatus = "REFUNDED"
)

// IsTerminal reports whether a status can never change again.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxSucceeded || s == TxFailed || s == TxRefunded
}

// TransactionMetadata captures what was purchased so settlement can grant the
// right entitlements without re-reading the original request.
type TransactionMetadata struct {
	MediaIDs  []string `json:"media_ids,omitempty"`
	UnlockAll bool     `json:"unlock_all,omitempty"`
	Credits   int64    `json:"credits,omitempty"`
	CreatorID string   `json:"creator_id,omitempty"`
}

// Transaction is one purchase attempt against one provider. The provider
// reference is unique platform-wide so two transactions can never settle
// against the same provider charge.
type Transaction struct {
	ID          string
	ActorID     string
	AmountCents int64
	Currency    string
	Provider    Provider
	ProviderRef *string
	Status      TransactionStatus
	Metadata    TransactionMetadata

	CreatedAt time.Time
	UpdatedAt time.Time
	SettledAt *time.Time
}

// NewTransaction builds a pending purchase row. The row is persisted before
// any provider call so a crash mid-checkout still leaves a reconcilable record.
func NewTransaction(id, actorID string, amountCents int64, currency string, provider Provider, meta TransactionMetadata) (*Transaction, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if currency == "" {
		return nil, ErrMissingCurrency
	}
	now := time.Now().UTC()
	return &Transaction{
		ID:          id,
		ActorID:     actorID,
		AmountCents: amountCents,
		Currency:    currency,
		Provider:    provider,
		Status:      TxPending,
		Metadata:    meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AttachProviderRef records the provider-side reference immediately after the
// provider call succeeds.
func (t *Transaction) AttachProviderRef(ref string) {
	t.ProviderRef = &ref
	t.UpdatedAt = time.Now().UTC()
}

// MarkSucceeded transitions PENDING -> SUCCEEDED. Terminal states are never
// overwritten; a second settlement attempt gets ErrTerminalTransaction.
func (t *Transaction) MarkSucceeded() error {
	return t.settle(TxSucceeded)
}

// MarkFailed transitions PENDING -> FAILED.
func (t *Transaction) MarkFailed() error {
	return t.settle(TxFailed)
}

// MarkRefunded transitions SUCCEEDED -> REFUNDED.
func (t *Transaction) MarkRefunded() error {
	if t.Status != TxSucceeded {
		return NewInvalidTransitionError(string(t.Status), string(TxRefunded))
	}
	now := time.Now().UTC()
	t.Status = TxRefunded
	t.UpdatedAt = now
	return nil
}

func (t *Transaction) settle(target TransactionStatus) error {
	if t.Status.IsTerminal() {
		return ErrTerminalTransaction
	}
	if t.Status != TxPending {
		return NewInvalidTransitionError(string(t.Status), string(target))
	}
	now := time.Now().UTC()
	t.Status = target
	t.SettledAt = &now
	t.UpdatedAt = now
	return nil
}
