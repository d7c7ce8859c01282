package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
)

const walletColumns = `id, creator_id, currency, available_balance_cents, updated_at`

// WalletRepository manages creator balances. Credits are keyed by transaction
// id in the wallet_credits table, so a retried settlement can never add the
// same earnings twice.
type WalletRepository struct {
	q Executor
}

func NewWalletRepository(db *DB) *WalletRepository {
	return &WalletRepository{q: db.Pool}
}

var _ application.WalletRepository = (*WalletRepository)(nil)

func (r *WalletRepository) FindByID(ctx context.Context, id string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return r.scanWallet(r.q.QueryRow(ctx, query, id))
}

// FindOrCreate returns the creator's wallet in the given currency, creating it
// on first use. The insert races safely against concurrent settlements via the
// unique (creator_id, currency) constraint.
func (r *WalletRepository) FindOrCreate(ctx context.Context, creatorID, currencyCode string) (*domain.Wallet, error) {
	query := `
		INSERT INTO wallets (id, creator_id, currency, available_balance_cents, updated_at)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (creator_id, currency) DO UPDATE SET updated_at = wallets.updated_at
		RETURNING ` + walletColumns

	return r.scanWallet(r.q.QueryRow(ctx, query, uuid.NewString(), creatorID, currencyCode, time.Now().UTC()))
}

// CreditForTransaction records the credit row first; if the transaction was
// already credited the insert is a no-op and the balance stays untouched.
func (r *WalletRepository) CreditForTransaction(ctx context.Context, walletID, transactionID string, amountCents int64) (bool, error) {
	insert := `
		INSERT INTO wallet_credits (transaction_id, wallet_id, amount_cents, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	result, err := r.q.Exec(ctx, insert, transactionID, walletID, amountCents, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record wallet credit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	update := `
		UPDATE wallets
		SET available_balance_cents = available_balance_cents + $2, updated_at = $3
		WHERE id = $1
	`
	if _, err := r.q.Exec(ctx, update, walletID, amountCents, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("failed to credit wallet balance: %w", err)
	}

	return true, nil
}

// ClaimForPayout locks the wallet row without waiting. A wallet already locked
// by another batch run surfaces as ErrWalletBusy so the caller can skip it.
func (r *WalletRepository) ClaimForPayout(ctx context.Context, walletID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE SKIP LOCKED`

	wallet, err := r.scanWallet(r.q.QueryRow(ctx, query, walletID))
	if err != nil {
		if errors.Is(err, domain.ErrWalletNotFound) {
			// SKIP LOCKED returns no rows for both a locked row and a missing
			// one; tell them apart with a plain existence check.
			var exists bool
			checkErr := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, walletID).Scan(&exists)
			if checkErr != nil {
				return nil, fmt.Errorf("failed to check wallet existence: %w", checkErr)
			}
			if exists {
				return nil, application.ErrWalletBusy
			}
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}

	return wallet, nil
}

func (r *WalletRepository) ListEligibleIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT id FROM wallets
		WHERE available_balance_cents > 0
		ORDER BY updated_at ASC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query eligible wallets: %w", err)
	}

	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan eligible wallets: %w", err)
	}

	return ids, nil
}

func (r *WalletRepository) Debit(ctx context.Context, walletID string, amountCents int64) error {
	query := `
		UPDATE wallets
		SET available_balance_cents = available_balance_cents - $2, updated_at = $3
		WHERE id = $1 AND available_balance_cents >= $2
	`

	result, err := r.q.Exec(ctx, query, walletID, amountCents, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}

	return nil
}

func (r *WalletRepository) scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var m WalletModel
	err := row.Scan(&m.ID, &m.CreatorID, &m.Currency, &m.AvailableBalanceCents, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	return toDomainWallet(m), nil
}
