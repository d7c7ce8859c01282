package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
)

const transactionColumns = `
	id, actor_id, amount_cents, currency, provider, provider_ref, status,
	metadata, created_at, updated_at, settled_at
`

type TransactionRepository struct {
	q Executor
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

var _ application.TransactionRepository = (*TransactionRepository)(nil)

func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	m, err := toTransactionModel(t)
	if err != nil {
		return err
	}

	_, err = r.q.Exec(ctx, query,
		m.ID,
		m.ActorID,
		m.AmountCents,
		m.Currency,
		m.Provider,
		m.ProviderRef,
		m.Status,
		m.Metadata,
		m.CreatedAt,
		m.UpdatedAt,
		m.SettledAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return application.ErrDuplicateProviderRef
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET provider_ref = $1, status = $2, metadata = $3, updated_at = $4, settled_at = $5
		WHERE id = $6
	`

	m, err := toTransactionModel(t)
	if err != nil {
		return err
	}

	result, err := r.q.Exec(ctx, query,
		m.ProviderRef,
		m.Status,
		m.Metadata,
		m.UpdatedAt,
		m.SettledAt,
		m.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return application.ErrDuplicateProviderRef
		}
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return application.ErrTransactionNotFound
	}

	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate retrieves a transaction with a row-level lock.
func (r *TransactionRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(r.q.QueryRow(ctx, query, id))
}

func (r *TransactionRepository) FindByProviderRef(ctx context.Context, provider domain.Provider, ref string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE provider = $1 AND provider_ref = $2`
	return scanTransaction(r.q.QueryRow(ctx, query, string(provider), ref))
}

func (r *TransactionRepository) FindByActorID(ctx context.Context, actorID string, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.q.Query(ctx, query, actorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query transactions by actor_id: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Transaction, error) {
		var m TransactionModel
		err := row.Scan(
			&m.ID, &m.ActorID, &m.AmountCents, &m.Currency, &m.Provider, &m.ProviderRef,
			&m.Status, &m.Metadata, &m.CreatedAt, &m.UpdatedAt, &m.SettledAt,
		)
		if err != nil {
			return nil, err
		}
		return toDomainTransaction(m)
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}

	return results, nil
}

// scanTransaction converts a database row into a domain Transaction.
// Returns application.ErrTransactionNotFound if the row doesn't exist.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var m TransactionModel
	err := row.Scan(
		&m.ID, &m.ActorID, &m.AmountCents, &m.Currency, &m.Provider, &m.ProviderRef,
		&m.Status, &m.Metadata, &m.CreatedAt, &m.UpdatedAt, &m.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return toDomainTransaction(m)
}
