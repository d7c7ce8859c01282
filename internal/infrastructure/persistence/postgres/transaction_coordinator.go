package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/lumapix/payments-service/internal/application"
)

// TransactionCoordinator runs a unit of work inside a single database
// transaction. Every repository handed to fn shares that transaction, so the
// whole unit commits or rolls back together.
type TransactionCoordinator struct {
	db     *DB
	logger *slog.Logger
}

func NewTransactionCoordinator(db *DB, logger *slog.Logger) *TransactionCoordinator {
	return &TransactionCoordinator{db: db, logger: logger}
}

var _ application.UnitOfWork = (*TransactionCoordinator)(nil)

func (tc *TransactionCoordinator) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos application.TxRepositories) error) error {
	tx, err := tc.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			tc.logger.Error("transaction rollback failed", "error", rbErr)
		}
	}()

	repos := application.TxRepositories{
		Transactions:  &TransactionRepository{q: tx},
		WebhookEvents: &WebhookEventRepository{q: tx},
		Entitlements:  &EntitlementRepository{q: tx},
		Wallets:       &WalletRepository{q: tx},
		Payouts:       &PayoutRepository{q: tx},
	}

	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
