package domain

import "time"

// IdempotencyStatus tracks how far the owning request got.
type IdempotencyStatus string

const (
	IdemProcessing IdempotencyStatus = "PROCESSING"
	IdemCompleted  IdempotencyStatus = "COMPLETED"
	IdemFailed     IdempotencyStatus = "FAILED"
)

// IdempotencyRecord is one row of the claim/replay ledger. At most one record
// exists per (scope, actor, key) triple; the row is created by the first claim
// attempt, mutated only by the request that owns it, and never deleted.
type IdempotencyRecord struct {
	OperationScope string
	ActorID        string
	Key            string
	RequestHash    string
	Status         IdempotencyStatus
	ResponseCode   int
	ResponseBody   []byte
	TransactionID  *string
	CreatedAt      time.Time
	LastSeenAt     time.Time
}

// ClaimOutcome is the result of attempting to claim an idempotency key.
type ClaimOutcome int

const (
	// ClaimOwner: no prior record existed; the caller owns processing and must
	// eventually finalize.
	ClaimOwner ClaimOutcome = iota
	// ClaimReplay: a finalized record with the same hash exists; return its
	// stored response without re-executing side effects.
	ClaimReplay
	// ClaimInFlight: a record with the same hash exists but is still
	// processing; the caller must not duplicate the side effect.
	ClaimInFlight
	// ClaimConflict: a record exists with a different hash, meaning the key
	// was reused for a distinct logical request.
	ClaimConflict
)

// Claim is what the ledger returns from a claim attempt. Record is nil only
// for ClaimOwner.
type Claim struct {
	Outcome ClaimOutcome
	Record  *IdempotencyRecord
}
