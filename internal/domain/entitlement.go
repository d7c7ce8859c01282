package domain

import "time"

// Entitlement grants an actor access to one purchased media item. Exactly one
// entitlement exists per (transaction, media) pair; granting is an upsert so a
// retried settlement cannot double-grant.
type Entitlement struct {
	TransactionID string
	ActorID       string
	MediaID       string
	GrantedAt     time.Time
}

// CreditGrant is the credit-bundle counterpart of an entitlement, keyed by
// transaction alone.
type CreditGrant struct {
	TransactionID string
	ActorID       string
	Credits       int64
	GrantedAt     time.Time
}

// WebhookEvent marks one provider-delivered event as applied. Existence of a
// row means "already processed"; redelivery becomes a no-op.
type WebhookEvent struct {
	Provider   Provider
	EventID    string
	ReceivedAt time.Time
}
