package application

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lumapix/payments-service/internal/domain"
)

// Sentinel errors shared between the ports and their postgres implementations.
var (
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrDuplicateWebhookEvent = errors.New("webhook event already recorded")
	ErrDuplicateProviderRef  = errors.New("provider reference already attached to another transaction")
	ErrWalletBusy            = errors.New("wallet is claimed by another batch run")
)

// IdempotencyLedger is the durable claim/replay store. Claim must be a single
// atomic insert arbitrated by the store's uniqueness constraint: exactly one
// concurrent caller gets ClaimOwner.
type IdempotencyLedger interface {
	Claim(ctx context.Context, scope, actorID, key, requestHash string) (*domain.Claim, error)
	// Finalize is a no-op when the record has already left PROCESSING.
	Finalize(ctx context.Context, scope, actorID, key string, status domain.IdempotencyStatus, responseCode int, responseBody []byte, transactionID *string) error
}

// TransactionRepository is the port for purchase-attempt persistence.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	Update(ctx context.Context, tx *domain.Transaction) error
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	// FindByIDForUpdate takes a row lock; only valid inside a unit of work.
	FindByIDForUpdate(ctx context.Context, id string) (*domain.Transaction, error)
	FindByProviderRef(ctx context.Context, provider domain.Provider, ref string) (*domain.Transaction, error)
	FindByActorID(ctx context.Context, actorID string, limit, offset int) ([]*domain.Transaction, error)
}

// WebhookEventRepository is the per-provider event ledger. Record returns
// ErrDuplicateWebhookEvent when the (provider, event id) pair was seen before.
type WebhookEventRepository interface {
	Record(ctx context.Context, provider domain.Provider, eventID string) error
}

// EntitlementRepository grants downstream effects of a succeeded transaction.
// All grants are upserts on natural keys so retried settlement cannot
// double-grant.
type EntitlementRepository interface {
	GrantEntitlement(ctx context.Context, e *domain.Entitlement) error
	GrantCredits(ctx context.Context, g *domain.CreditGrant) error
	CountByTransaction(ctx context.Context, transactionID string) (int, error)
}

// WalletRepository manages creator balances.
type WalletRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Wallet, error)
	FindOrCreate(ctx context.Context, creatorID, currencyCode string) (*domain.Wallet, error)
	// CreditForTransaction adds to the balance at most once per transaction.
	// It reports whether this call performed the credit.
	CreditForTransaction(ctx context.Context, walletID, transactionID string, amountCents int64) (bool, error)
	// ClaimForPayout locks the wallet row without waiting; ErrWalletBusy when
	// another batch run holds it. Only valid inside a unit of work.
	ClaimForPayout(ctx context.Context, walletID string) (*domain.Wallet, error)
	ListEligibleIDs(ctx context.Context, limit int) ([]string, error)
	Debit(ctx context.Context, walletID string, amountCents int64) error
}

// PayoutRepository records payment-out attempts.
type PayoutRepository interface {
	Create(ctx context.Context, p *domain.Payout) error
	FindByWalletID(ctx context.Context, walletID string) ([]*domain.Payout, error)
	// RequeueFailed moves FAILED payouts created after cutoff back to PENDING
	// and returns how many rows moved.
	RequeueFailed(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettingsRepository holds platform-wide operational flags.
type SettingsRepository interface {
	PayoutsPaused(ctx context.Context) (bool, error)
	SetPayoutsPaused(ctx context.Context, paused bool) error
}

// CreateSessionRequest asks a provider to open a hosted checkout.
type CreateSessionRequest struct {
	Reference   string
	ActorID     string
	AmountCents int64
	Currency    string
	Description string
}

// CheckoutSession is the provider-hosted page the client is redirected to.
type CheckoutSession struct {
	ProviderRef string
	CheckoutURL string
}

// EventKind classifies a provider webhook event.
type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment_succeeded"
	EventPaymentFailed    EventKind = "payment_failed"
	EventPaymentRefunded  EventKind = "payment_refunded"
	EventIgnored          EventKind = "ignored"
)

// ProviderEvent is a verified, normalized webhook notification.
type ProviderEvent struct {
	Provider    domain.Provider
	EventID     string
	Kind        EventKind
	ProviderRef string
	AmountCents int64
	Currency    string
}

// ChargeStatus is the provider's answer to a direct verification query.
type ChargeStatus struct {
	ProviderRef string
	Settled     bool
	RawStatus   string
}

// ProviderClient is the port each payment gateway variant implements.
type ProviderClient interface {
	Provider() domain.Provider
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CheckoutSession, error)
	VerifyEvent(ctx context.Context, payload []byte, header http.Header) (*ProviderEvent, error)
	VerifyCharge(ctx context.Context, providerRef string) (*ChargeStatus, error)
}

// Lease is a time-boxed exclusive claim used to keep concurrent batch runs
// off the same resource.
type Lease interface {
	// Acquire returns held=false when another owner holds the lease. The
	// release func is safe to call after expiry; it never releases a lease
	// acquired by someone else.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, held bool, err error)
}

// TxRepositories are repository instances bound to one store transaction.
type TxRepositories struct {
	Transactions  TransactionRepository
	WebhookEvents WebhookEventRepository
	Entitlements  EntitlementRepository
	Wallets       WalletRepository
	Payouts       PayoutRepository
}

// UnitOfWork runs fn inside a single store transaction; fn's repositories all
// share it.
type UnitOfWork interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}
