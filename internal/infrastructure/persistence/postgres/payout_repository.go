package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
)

const payoutColumns = `id, wallet_id, creator_id, amount_cents, currency, mode, status, created_at, updated_at`

type PayoutRepository struct {
	q Executor
}

func NewPayoutRepository(db *DB) *PayoutRepository {
	return &PayoutRepository{q: db.Pool}
}

var _ application.PayoutRepository = (*PayoutRepository)(nil)

func (r *PayoutRepository) Create(ctx context.Context, p *domain.Payout) error {
	query := `
		INSERT INTO payouts (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		p.ID,
		p.WalletID,
		p.CreatorID,
		p.AmountCents,
		p.Currency,
		string(p.Mode),
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}

	return nil
}

func (r *PayoutRepository) FindByWalletID(ctx context.Context, walletID string) ([]*domain.Payout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM payouts WHERE wallet_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.q.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("query payouts by wallet_id: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payout, error) {
		var m PayoutModel
		err := row.Scan(
			&m.ID, &m.WalletID, &m.CreatorID, &m.AmountCents, &m.Currency,
			&m.Mode, &m.Status, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		return toDomainPayout(m), nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan payouts: %w", err)
	}

	return results, nil
}

// RequeueFailed moves recent FAILED payouts back to PENDING so the worker
// picks them up again. Rows older than cutoff stay FAILED for manual review.
func (r *PayoutRepository) RequeueFailed(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE payouts
		SET status = $1, updated_at = $2
		WHERE status = $3 AND created_at >= $4
	`

	result, err := r.q.Exec(ctx, query,
		string(domain.PayoutPending), time.Now().UTC(),
		string(domain.PayoutFailed), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue failed payouts: %w", err)
	}

	return result.RowsAffected(), nil
}
