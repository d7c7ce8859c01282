package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lumapix/payments-service/internal/application"
)

const settingPayoutsPaused = "payouts_paused"

// SettingsRepository stores platform-wide operational flags as key/value rows.
type SettingsRepository struct {
	q Executor
}

func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{q: db.Pool}
}

var _ application.SettingsRepository = (*SettingsRepository)(nil)

func (r *SettingsRepository) PayoutsPaused(ctx context.Context) (bool, error) {
	query := `SELECT value FROM platform_settings WHERE key = $1`

	var value string
	err := r.q.QueryRow(ctx, query, settingPayoutsPaused).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read payouts_paused setting: %w", err)
	}

	return value == "true", nil
}

func (r *SettingsRepository) SetPayoutsPaused(ctx context.Context, paused bool) error {
	query := `
		INSERT INTO platform_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	value := "false"
	if paused {
		value = "true"
	}

	_, err := r.q.Exec(ctx, query, settingPayoutsPaused, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write payouts_paused setting: %w", err)
	}

	return nil
}
