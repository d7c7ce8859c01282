package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
)

// VerifyState reconciles the stored transaction against the provider's view.
type VerifyState string

const (
	VerifySettled  VerifyState = "settled"
	VerifyPending  VerifyState = "pending"
	VerifyMismatch VerifyState = "mismatch"
)

// VerifyResult is the read-only reconciliation report for one purchase.
type VerifyResult struct {
	PurchaseID     string      `json:"purchaseId"`
	Status         string      `json:"status"`
	ProviderStatus string      `json:"providerStatus"`
	State          VerifyState `json:"state"`
}

// VerifyService re-queries the provider for a purchase and cross-checks the
// stored transaction. It never mutates state; a mismatch is a report, not a
// correction.
type VerifyService struct {
	transactions application.TransactionRepository
	providers    ProviderResolver
	logger       *slog.Logger
}

func NewVerifyService(transactions application.TransactionRepository, providers ProviderResolver, logger *slog.Logger) *VerifyService {
	return &VerifyService{
		transactions: transactions,
		providers:    providers,
		logger:       logger,
	}
}

func (s *VerifyService) Verify(ctx context.Context, purchaseID string) (*VerifyResult, error) {
	tx, err := s.transactions.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, application.ErrTransactionNotFound) {
			return nil, application.NewNotFoundError("transaction")
		}
		return nil, application.NewPersistenceError(err)
	}

	result := &VerifyResult{
		PurchaseID: tx.ID,
		Status:     string(tx.Status),
	}

	// No provider reference means the session was never opened; nothing to
	// cross-check yet.
	if tx.ProviderRef == nil {
		result.State = VerifyPending
		return result, nil
	}

	client, err := s.providers.Get(tx.Provider)
	if err != nil {
		return nil, err
	}

	charge, err := client.VerifyCharge(ctx, *tx.ProviderRef)
	if err != nil {
		return nil, application.NewProviderError(err)
	}

	result.ProviderStatus = charge.RawStatus

	switch {
	case charge.Settled != (tx.Status == domain.TxSucceeded):
		result.State = VerifyMismatch
		s.logger.Warn("provider state disagrees with stored transaction",
			"transaction_id", tx.ID,
			"stored_status", string(tx.Status),
			"provider_status", charge.RawStatus,
		)
	case charge.Settled:
		result.State = VerifySettled
	default:
		result.State = VerifyPending
	}

	return result, nil
}
