package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/currency"
	"github.com/lumapix/payments-service/internal/domain"
)

// ScopeCheckout namespaces idempotency keys so a future operation type can
// reuse a client's key without colliding.
const ScopeCheckout = "checkout"

// ProviderResolver returns the client registered for a gateway variant.
type ProviderResolver interface {
	Get(p domain.Provider) (application.ProviderClient, error)
}

// CheckoutResponse is the JSON body stored in the idempotency ledger and
// replayed byte-identically on key reuse.
type CheckoutResponse struct {
	Success     bool   `json:"success"`
	Provider    string `json:"provider"`
	CheckoutURL string `json:"checkoutUrl"`
	PurchaseID  string `json:"purchaseId"`
}

// CheckoutResult carries the exact bytes the handler should write. Replay
// paths reuse the stored body so retried clients see the original response.
type CheckoutResult struct {
	StatusCode int
	Body       json.RawMessage
	Replayed   bool
}

// CheckoutService orchestrates one purchase: claim the idempotency key, price,
// route to a gateway, persist a pending transaction, open the provider
// session, finalize. Every failure after the claim finalizes the record as
// FAILED so retries with the same key replay the error instead of hanging.
type CheckoutService struct {
	ledger       application.IdempotencyLedger
	transactions application.TransactionRepository
	converter    *currency.Converter
	selector     *GatewaySelector
	providers    ProviderResolver
	pricing      config.PricingConfig
	logger       *slog.Logger
}

func NewCheckoutService(
	ledger application.IdempotencyLedger,
	transactions application.TransactionRepository,
	converter *currency.Converter,
	selector *GatewaySelector,
	providers ProviderResolver,
	pricing config.PricingConfig,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		ledger:       ledger,
		transactions: transactions,
		converter:    converter,
		selector:     selector,
		providers:    providers,
		pricing:      pricing,
		logger:       logger,
	}
}

func (s *CheckoutService) Checkout(ctx context.Context, cmd CheckoutCommand, idempotencyKey string) (*CheckoutResult, error) {
	if cmd.Credits <= 0 && len(cmd.MediaIDs) == 0 && !cmd.UnlockAll {
		return nil, application.NewValidationError(domain.ErrEmptyCheckout)
	}

	// Pricing must be rejected before the claim; claiming a key for an
	// unpriceable cart would permanently finalize it as FAILED.
	baseAmount := s.cartAmount(cmd)
	if baseAmount <= 0 {
		return nil, application.NewValidationError(domain.ErrInvalidAmount)
	}

	requestHash := ComputeHash(cmd)

	claim, err := s.ledger.Claim(ctx, ScopeCheckout, cmd.ActorID, idempotencyKey, requestHash)
	if err != nil {
		return nil, application.NewPersistenceError(err)
	}

	switch claim.Outcome {
	case domain.ClaimConflict:
		return nil, application.NewIdempotencyConflictError()
	case domain.ClaimInFlight:
		return nil, application.NewIdempotencyInFlightError()
	case domain.ClaimReplay:
		return &CheckoutResult{
			StatusCode: claim.Record.ResponseCode,
			Body:       claim.Record.ResponseBody,
			Replayed:   true,
		}, nil
	}

	// ClaimOwner from here: this request is responsible for finalizing.
	result, err := s.process(ctx, cmd, baseAmount, idempotencyKey)
	if err != nil {
		s.finalizeFailure(ctx, cmd.ActorID, idempotencyKey, err)
		return nil, err
	}

	return result, nil
}

// cartAmount prices the cart in the base currency.
func (s *CheckoutService) cartAmount(cmd CheckoutCommand) int64 {
	amount := int64(len(cmd.MediaIDs))*s.pricing.MediaUnitPriceCents +
		cmd.Credits*s.pricing.CreditUnitPriceCents
	if cmd.UnlockAll {
		amount += s.pricing.UnlockAllPriceCents
	}
	return amount
}

func (s *CheckoutService) process(ctx context.Context, cmd CheckoutCommand, baseAmount int64, idempotencyKey string) (*CheckoutResult, error) {
	chargeCurrency := s.converter.EffectiveCurrency(cmd.Currency, cmd.DetectedCountry)

	amount, err := s.converter.Convert(ctx, baseAmount, s.converter.Base(), chargeCurrency)
	if err != nil {
		if errors.Is(err, currency.ErrUnknownCurrency) {
			return nil, application.NewValidationError(err)
		}
		return nil, application.NewInternalError(err)
	}
	if amount <= 0 {
		return nil, application.NewValidationError(domain.ErrInvalidAmount)
	}

	product := domain.ProductMedia
	if cmd.Credits > 0 {
		product = domain.ProductCredits
	}

	selection, err := s.selector.Select(cmd.DetectedCountry, chargeCurrency, product)
	if err != nil {
		return nil, err
	}

	client, err := s.providers.Get(selection.Gateway)
	if err != nil {
		return nil, err
	}

	tx, err := domain.NewTransaction(
		uuid.New().String(),
		cmd.ActorID,
		amount,
		chargeCurrency,
		selection.Gateway,
		domain.TransactionMetadata{
			MediaIDs:  cmd.MediaIDs,
			UnlockAll: cmd.UnlockAll,
			Credits:   cmd.Credits,
			CreatorID: cmd.CreatorID,
		},
	)
	if err != nil {
		return nil, application.NewValidationError(err)
	}

	// The pending row goes down before the provider call so a crash between
	// the two still leaves a reconcilable record.
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, application.NewPersistenceError(err)
	}

	session, err := client.CreateSession(ctx, application.CreateSessionRequest{
		Reference:   tx.ID,
		ActorID:     cmd.ActorID,
		AmountCents: amount,
		Currency:    chargeCurrency,
		Description: checkoutDescription(cmd),
	})
	if err != nil {
		s.failTransaction(ctx, tx)
		return nil, application.NewProviderError(err)
	}

	tx.AttachProviderRef(session.ProviderRef)
	if err := s.transactions.Update(ctx, tx); err != nil {
		return nil, application.NewPersistenceError(err)
	}

	body, err := json.Marshal(CheckoutResponse{
		Success:     true,
		Provider:    string(selection.Gateway),
		CheckoutURL: session.CheckoutURL,
		PurchaseID:  tx.ID,
	})
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	if err := s.ledger.Finalize(ctx, ScopeCheckout, cmd.ActorID, idempotencyKey,
		domain.IdemCompleted, http.StatusCreated, body, &tx.ID); err != nil {
		s.logger.Error("failed to finalize idempotency record",
			"actor_id", cmd.ActorID, "transaction_id", tx.ID, "error", err)
	}

	return &CheckoutResult{StatusCode: http.StatusCreated, Body: body}, nil
}

// finalizeFailure stores the error outcome so a retry with the same key
// replays it. The financial state was already persisted by the failing step.
func (s *CheckoutService) finalizeFailure(ctx context.Context, actorID, idempotencyKey string, cause error) {
	status := http.StatusInternalServerError
	code := application.ErrCodeInternal
	message := "An internal error occurred"

	if svcErr, ok := application.IsServiceError(cause); ok {
		status = svcErr.HTTPStatus
		code = svcErr.Code
		message = svcErr.Message
	} else if selErr, ok := application.IsGatewaySelectionError(cause); ok {
		status = http.StatusServiceUnavailable
		code = selErr.Code
		message = "No payment gateway available for this route"
	}

	body, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})

	if err := s.ledger.Finalize(ctx, ScopeCheckout, actorID, idempotencyKey,
		domain.IdemFailed, status, body, nil); err != nil {
		s.logger.Error("failed to finalize failed checkout",
			"actor_id", actorID, "error", err)
	}
}

func (s *CheckoutService) failTransaction(ctx context.Context, tx *domain.Transaction) {
	if err := tx.MarkFailed(); err != nil {
		return
	}
	if err := s.transactions.Update(ctx, tx); err != nil {
		s.logger.Error("failed to mark transaction failed",
			"transaction_id", tx.ID, "error", err)
	}
}

func checkoutDescription(cmd CheckoutCommand) string {
	switch {
	case cmd.Credits > 0:
		return fmt.Sprintf("%d photo credits", cmd.Credits)
	case cmd.UnlockAll:
		return "Full event gallery unlock"
	default:
		return fmt.Sprintf("%d event photos", len(cmd.MediaIDs))
	}
}
