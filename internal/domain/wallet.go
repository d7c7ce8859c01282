package domain

import "time"

// Wallet holds a creator's available balance in one currency.
type Wallet struct {
	ID                    string
	CreatorID             string
	Currency              string
	AvailableBalanceCents int64
	UpdatedAt             time.Time
}

// PayoutMode records why a payout was created.
type PayoutMode string

const (
	PayoutModeThreshold PayoutMode = "threshold"
	PayoutModeSingle    PayoutMode = "single"
)

// PayoutStatus lifecycle: PENDING -> PROCESSING -> SUCCEEDED | FAILED.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutSucceeded  PayoutStatus = "SUCCEEDED"
	PayoutFailed     PayoutStatus = "FAILED"
)

// Payout is an immutable record of one payment-out attempt. Creating a payout
// decrements its wallet exactly once, inside the same row-locked transaction.
type Payout struct {
	ID          string
	WalletID    string
	CreatorID   string
	AmountCents int64
	Currency    string
	Mode        PayoutMode
	Status      PayoutStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WalletCredit ties a wallet balance increase to the transaction that earned
// it. The unique transaction key makes settlement retries credit-safe.
type WalletCredit struct {
	WalletID      string
	TransactionID string
	AmountCents   int64
	CreatedAt     time.Time
}
