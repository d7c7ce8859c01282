package postgres

import (
	"time"
)

// TransactionModel mirrors one row of the transactions table. Metadata is
// stored as JSONB and scanned through pgx's native JSON support.
type TransactionModel struct {
	ID          string
	ActorID     string
	AmountCents int64
	Currency    string
	Provider    string
	ProviderRef *string
	Status      string
	Metadata    []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SettledAt   *time.Time
}

// IdempotencyModel enforces at-most-once semantics via the composite primary
// key on (operation_scope, actor_id, idempotency_key).
type IdempotencyModel struct {
	OperationScope string
	ActorID        string
	IdempotencyKey string
	RequestHash    string
	Status         string
	ResponseCode   *int
	ResponseBody   *[]byte
	TransactionID  *string
	CreatedAt      time.Time
	LastSeenAt     time.Time
}

type WalletModel struct {
	ID                    string
	CreatorID             string
	Currency              string
	AvailableBalanceCents int64
	UpdatedAt             time.Time
}

type PayoutModel struct {
	ID          string
	WalletID    string
	CreatorID   string
	AmountCents int64
	Currency    string
	Mode        string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
