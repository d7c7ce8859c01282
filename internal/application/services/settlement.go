package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/domain"
)

// SettlementService applies verified provider webhooks to stored transactions.
// The event record, the status transition, and every grant run in one store
// transaction, so a crash mid-settlement leaves the event unrecorded and the
// provider's redelivery applies everything cleanly.
type SettlementService struct {
	uow       application.UnitOfWork
	providers ProviderResolver
	pricing   config.PricingConfig
	logger    *slog.Logger
}

func NewSettlementService(
	uow application.UnitOfWork,
	providers ProviderResolver,
	pricing config.PricingConfig,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		uow:       uow,
		providers: providers,
		pricing:   pricing,
		logger:    logger,
	}
}

// Settle verifies and applies one webhook delivery. Every return path except
// signature failure means "durably handled": duplicates, unknown references,
// and late events for terminal transactions are logged and discarded.
func (s *SettlementService) Settle(ctx context.Context, providerName domain.Provider, payload []byte, header http.Header) error {
	client, err := s.providers.Get(providerName)
	if err != nil {
		return err
	}

	event, err := client.VerifyEvent(ctx, payload, header)
	if err != nil {
		return application.NewSignatureError(err)
	}

	if event.Kind == application.EventIgnored {
		s.logger.Debug("ignoring webhook event", "provider", string(providerName), "event_id", event.EventID)
		return nil
	}

	err = s.uow.WithTransaction(ctx, func(ctx context.Context, repos application.TxRepositories) error {
		return s.apply(ctx, repos, event)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, application.ErrDuplicateWebhookEvent):
		s.logger.Info("duplicate webhook delivery discarded",
			"provider", string(event.Provider), "event_id", event.EventID)
		return nil
	case errors.Is(err, application.ErrTransactionNotFound):
		// The transaction may not be visible yet (provider raced our insert).
		// Roll back so the redelivery can settle it.
		s.logger.Warn("webhook references unknown transaction",
			"provider", string(event.Provider), "provider_ref", event.ProviderRef)
		return nil
	case errors.Is(err, domain.ErrTerminalTransaction):
		s.logger.Info("late webhook for settled transaction discarded",
			"provider", string(event.Provider), "provider_ref", event.ProviderRef)
		return nil
	case isInvalidTransition(err):
		s.logger.Info("webhook event not applicable to transaction state, discarded",
			"provider", string(event.Provider), "provider_ref", event.ProviderRef, "kind", string(event.Kind))
		return nil
	default:
		return application.NewPersistenceError(err)
	}
}

// isInvalidTransition reports a transition the stored state cannot accept,
// such as a refund notification for a transaction that never succeeded.
func isInvalidTransition(err error) bool {
	var domainErr *domain.DomainError
	return errors.As(err, &domainErr) && domainErr.Code == domain.ErrCodeInvalidTransition
}

func (s *SettlementService) apply(ctx context.Context, repos application.TxRepositories, event *application.ProviderEvent) error {
	if err := repos.WebhookEvents.Record(ctx, event.Provider, event.EventID); err != nil {
		return err
	}

	tx, err := repos.Transactions.FindByProviderRef(ctx, event.Provider, event.ProviderRef)
	if err != nil {
		return err
	}

	// Re-read under a row lock; a concurrent delivery for the same
	// transaction blocks here and then sees the terminal state.
	tx, err = repos.Transactions.FindByIDForUpdate(ctx, tx.ID)
	if err != nil {
		return err
	}

	switch event.Kind {
	case application.EventPaymentSucceeded:
		if err := tx.MarkSucceeded(); err != nil {
			return err
		}
	case application.EventPaymentFailed:
		if err := tx.MarkFailed(); err != nil {
			return err
		}
	case application.EventPaymentRefunded:
		if err := tx.MarkRefunded(); err != nil {
			return err
		}
	default:
		return nil
	}

	if err := repos.Transactions.Update(ctx, tx); err != nil {
		return err
	}

	if tx.Status != domain.TxSucceeded {
		return nil
	}

	return s.grant(ctx, repos, tx)
}

// grant applies the downstream effects of a succeeded purchase. Each step is
// an upsert on a natural key, so re-running the whole unit grants nothing new.
func (s *SettlementService) grant(ctx context.Context, repos application.TxRepositories, tx *domain.Transaction) error {
	now := time.Now().UTC()

	for _, mediaID := range tx.Metadata.MediaIDs {
		err := repos.Entitlements.GrantEntitlement(ctx, &domain.Entitlement{
			TransactionID: tx.ID,
			ActorID:       tx.ActorID,
			MediaID:       mediaID,
			GrantedAt:     now,
		})
		if err != nil {
			return err
		}
	}

	if tx.Metadata.Credits > 0 {
		err := repos.Entitlements.GrantCredits(ctx, &domain.CreditGrant{
			TransactionID: tx.ID,
			ActorID:       tx.ActorID,
			Credits:       tx.Metadata.Credits,
			GrantedAt:     now,
		})
		if err != nil {
			return err
		}
	}

	if tx.Metadata.CreatorID == "" {
		return nil
	}

	wallet, err := repos.Wallets.FindOrCreate(ctx, tx.Metadata.CreatorID, tx.Currency)
	if err != nil {
		return err
	}

	net := tx.AmountCents - tx.AmountCents*s.pricing.PlatformFeePercent/100
	if net <= 0 {
		return nil
	}

	credited, err := repos.Wallets.CreditForTransaction(ctx, wallet.ID, tx.ID, net)
	if err != nil {
		return err
	}
	if credited {
		s.logger.Info("creator wallet credited",
			"wallet_id", wallet.ID, "transaction_id", tx.ID, "amount_cents", net)
	}

	return nil
}
