package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
)

// IdempotencyRepository is the durable claim/replay ledger. The composite
// primary key on (operation_scope, actor_id, idempotency_key) arbitrates
// concurrent first-callers: exactly one INSERT lands, everyone else reads the
// existing row.
type IdempotencyRepository struct {
	q Executor
}

func NewIdempotencyRepository(db *DB) *IdempotencyRepository {
	return &IdempotencyRepository{q: db.Pool}
}

var _ application.IdempotencyLedger = (*IdempotencyRepository)(nil)

func (r *IdempotencyRepository) Claim(ctx context.Context, scope, actorID, key, requestHash string) (*domain.Claim, error) {
	insert := `
		INSERT INTO idempotency_records
			(operation_scope, actor_id, idempotency_key, request_hash, status, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`

	now := time.Now().UTC()
	_, err := r.q.Exec(ctx, insert, scope, actorID, key, requestHash, string(domain.IdemProcessing), now)
	if err == nil {
		return &domain.Claim{Outcome: domain.ClaimOwner}, nil
	}

	if !IsUniqueViolation(err) {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	// Key exists - load the record and classify the retry.
	record, err := r.find(ctx, scope, actorID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing idempotency record: %w", err)
	}

	touch := `
		UPDATE idempotency_records SET last_seen_at = $4
		WHERE operation_scope = $1 AND actor_id = $2 AND idempotency_key = $3
	`
	if _, err := r.q.Exec(ctx, touch, scope, actorID, key, now); err != nil {
		return nil, fmt.Errorf("failed to touch idempotency record: %w", err)
	}

	if record.RequestHash != requestHash {
		return &domain.Claim{Outcome: domain.ClaimConflict, Record: record}, nil
	}

	if record.Status == domain.IdemProcessing {
		return &domain.Claim{Outcome: domain.ClaimInFlight, Record: record}, nil
	}

	return &domain.Claim{Outcome: domain.ClaimReplay, Record: record}, nil
}

// Finalize stores the owner's outcome. The status guard makes a second
// finalization a no-op, so a racing late finalizer cannot clobber the stored
// response.
func (r *IdempotencyRepository) Finalize(ctx context.Context, scope, actorID, key string, status domain.IdempotencyStatus, responseCode int, responseBody []byte, transactionID *string) error {
	query := `
		UPDATE idempotency_records
		SET status = $4, response_code = $5, response_body = $6, transaction_id = $7, last_seen_at = $8
		WHERE operation_scope = $1 AND actor_id = $2 AND idempotency_key = $3
		  AND status = $9
	`

	_, err := r.q.Exec(ctx, query,
		scope, actorID, key,
		string(status), responseCode, responseBody, transactionID,
		time.Now().UTC(), string(domain.IdemProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to finalize idempotency record: %w", err)
	}

	return nil
}

func (r *IdempotencyRepository) find(ctx context.Context, scope, actorID, key string) (*domain.IdempotencyRecord, error) {
	query := `
		SELECT operation_scope, actor_id, idempotency_key, request_hash, status,
		       response_code, response_body, transaction_id, created_at, last_seen_at
		FROM idempotency_records
		WHERE operation_scope = $1 AND actor_id = $2 AND idempotency_key = $3
	`

	var m IdempotencyModel
	err := r.q.QueryRow(ctx, query, scope, actorID, key).Scan(
		&m.OperationScope,
		&m.ActorID,
		&m.IdempotencyKey,
		&m.RequestHash,
		&m.Status,
		&m.ResponseCode,
		&m.ResponseBody,
		&m.TransactionID,
		&m.CreatedAt,
		&m.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	return toIdempotencyRecord(m), nil
}
