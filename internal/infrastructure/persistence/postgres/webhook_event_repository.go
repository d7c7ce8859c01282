package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
)

// WebhookEventRepository is the per-provider event ledger. The composite
// primary key on (provider, event_id) turns redelivery into a unique
// violation, which callers treat as "already applied".
type WebhookEventRepository struct {
	q Executor
}

func NewWebhookEventRepository(db *DB) *WebhookEventRepository {
	return &WebhookEventRepository{q: db.Pool}
}

var _ application.WebhookEventRepository = (*WebhookEventRepository)(nil)

func (r *WebhookEventRepository) Record(ctx context.Context, provider domain.Provider, eventID string) error {
	query := `
		INSERT INTO webhook_events (provider, event_id, received_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.q.Exec(ctx, query, string(provider), eventID, time.Now().UTC())
	if err != nil {
		if IsUniqueViolation(err) {
			return application.ErrDuplicateWebhookEvent
		}
		return fmt.Errorf("failed to record webhook event: %w", err)
	}

	return nil
}
