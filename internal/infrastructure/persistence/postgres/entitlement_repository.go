package postgres

import (
	"context"
	"fmt"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
)

// EntitlementRepository grants access to purchased media and credit bundles.
// Every grant is an upsert on its natural key so a retried settlement step
// cannot create a second row.
type EntitlementRepository struct {
	q Executor
}

func NewEntitlementRepository(db *DB) *EntitlementRepository {
	return &EntitlementRepository{q: db.Pool}
}

var _ application.EntitlementRepository = (*EntitlementRepository)(nil)

func (r *EntitlementRepository) GrantEntitlement(ctx context.Context, e *domain.Entitlement) error {
	query := `
		INSERT INTO entitlements (transaction_id, actor_id, media_id, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transaction_id, media_id) DO NOTHING
	`

	_, err := r.q.Exec(ctx, query, e.TransactionID, e.ActorID, e.MediaID, e.GrantedAt)
	if err != nil {
		return fmt.Errorf("failed to grant entitlement: %w", err)
	}

	return nil
}

func (r *EntitlementRepository) GrantCredits(ctx context.Context, g *domain.CreditGrant) error {
	query := `
		INSERT INTO credit_grants (transaction_id, actor_id, credits, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	_, err := r.q.Exec(ctx, query, g.TransactionID, g.ActorID, g.Credits, g.GrantedAt)
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}

	return nil
}

func (r *EntitlementRepository) CountByTransaction(ctx context.Context, transactionID string) (int, error) {
	query := `SELECT count(*) FROM entitlements WHERE transaction_id = $1`

	var count int
	if err := r.q.QueryRow(ctx, query, transactionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entitlements: %w", err)
	}

	return count, nil
}
