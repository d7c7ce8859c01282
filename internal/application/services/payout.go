package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/domain"
)

// payoutLeaseKey is the shared lease name; the HTTP trigger and the background
// worker contend for the same lease so only one batch runs platform-wide.
const payoutLeaseKey = "payouts:batch"

const defaultRetryWindow = 24 * time.Hour

// BatchResult summarizes one threshold batch run.
type BatchResult struct {
	WalletsScanned int `json:"walletsScanned"`
	PayoutsCreated int `json:"payoutsCreated"`
	WalletsSkipped int `json:"walletsSkipped"`
}

// PayoutService coordinates creator payouts. Exclusion is layered: the Redis
// lease keeps whole batch runs apart, and FOR UPDATE SKIP LOCKED on the wallet
// row guarantees a wallet is paid out at most once even if both runs get
// through.
type PayoutService struct {
	uow      application.UnitOfWork
	wallets  application.WalletRepository
	payouts  application.PayoutRepository
	settings application.SettingsRepository
	lease    application.Lease
	cfg      config.PayoutConfig
	logger   *slog.Logger
}

func NewPayoutService(
	uow application.UnitOfWork,
	wallets application.WalletRepository,
	payouts application.PayoutRepository,
	settings application.SettingsRepository,
	lease application.Lease,
	cfg config.PayoutConfig,
	logger *slog.Logger,
) *PayoutService {
	return &PayoutService{
		uow:      uow,
		wallets:  wallets,
		payouts:  payouts,
		settings: settings,
		lease:    lease,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunThresholdBatch pays out every wallet whose balance reached its currency
// minimum. A second concurrent run is refused via the batch lease.
func (s *PayoutService) RunThresholdBatch(ctx context.Context) (*BatchResult, error) {
	if err := s.ensureNotPaused(ctx); err != nil {
		return nil, err
	}

	release, held, err := s.lease.Acquire(ctx, payoutLeaseKey, s.cfg.LeaseTTL)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if !held {
		return nil, application.NewBatchInProgressError()
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logger.Error("failed to release payout batch lease", "error", err)
		}
	}()

	walletIDs, err := s.wallets.ListEligibleIDs(ctx, s.cfg.BatchSize)
	if err != nil {
		return nil, application.NewPersistenceError(err)
	}

	result := &BatchResult{WalletsScanned: len(walletIDs)}
	for _, walletID := range walletIDs {
		created, err := s.payoutWallet(ctx, walletID, domain.PayoutModeThreshold)
		if err != nil {
			s.logger.Error("payout failed for wallet", "wallet_id", walletID, "error", err)
			result.WalletsSkipped++
			continue
		}
		if created {
			result.PayoutsCreated++
		} else {
			result.WalletsSkipped++
		}
	}

	s.logger.Info("payout batch finished",
		"scanned", result.WalletsScanned,
		"created", result.PayoutsCreated,
		"skipped", result.WalletsSkipped,
	)

	return result, nil
}

// PayoutSingle pays out one named wallet regardless of threshold. The balance
// still has to be positive.
func (s *PayoutService) PayoutSingle(ctx context.Context, cmd SinglePayoutCommand) (*domain.Payout, error) {
	if err := s.ensureNotPaused(ctx); err != nil {
		return nil, err
	}

	var payout *domain.Payout
	err := s.uow.WithTransaction(ctx, func(ctx context.Context, repos application.TxRepositories) error {
		wallet, err := repos.Wallets.ClaimForPayout(ctx, cmd.WalletID)
		if err != nil {
			return err
		}
		if wallet.AvailableBalanceCents <= 0 {
			return domain.ErrInsufficientBalance
		}

		payout, err = s.createPayout(ctx, repos, wallet, domain.PayoutModeSingle)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, application.ErrWalletBusy):
			return nil, application.NewBatchInProgressError()
		case errors.Is(err, domain.ErrWalletNotFound):
			return nil, application.NewNotFoundError("wallet")
		case errors.Is(err, domain.ErrInsufficientBalance):
			return nil, application.NewValidationError(err)
		}
		return nil, application.NewPersistenceError(err)
	}

	return payout, nil
}

// RetryFailed moves FAILED payouts younger than the retry window back to
// PENDING. Older failures stay put for manual review.
func (s *PayoutService) RetryFailed(ctx context.Context) (int64, error) {
	if err := s.ensureNotPaused(ctx); err != nil {
		return 0, err
	}

	window := s.cfg.RetryWindow
	if window <= 0 {
		window = defaultRetryWindow
	}

	moved, err := s.payouts.RequeueFailed(ctx, time.Now().UTC().Add(-window))
	if err != nil {
		return 0, application.NewPersistenceError(err)
	}

	s.logger.Info("requeued failed payouts", "count", moved)
	return moved, nil
}

func (s *PayoutService) Pause(ctx context.Context) error {
	if err := s.settings.SetPayoutsPaused(ctx, true); err != nil {
		return application.NewPersistenceError(err)
	}
	s.logger.Warn("payout processing paused")
	return nil
}

func (s *PayoutService) Resume(ctx context.Context) error {
	if err := s.settings.SetPayoutsPaused(ctx, false); err != nil {
		return application.NewPersistenceError(err)
	}
	s.logger.Info("payout processing resumed")
	return nil
}

func (s *PayoutService) ensureNotPaused(ctx context.Context) error {
	paused, err := s.settings.PayoutsPaused(ctx)
	if err != nil {
		return application.NewPersistenceError(err)
	}
	if paused {
		return application.NewPayoutsPausedError()
	}
	return nil
}

// payoutWallet runs one wallet's payout in its own store transaction. A wallet
// locked by a concurrent run is skipped, not an error.
func (s *PayoutService) payoutWallet(ctx context.Context, walletID string, mode domain.PayoutMode) (bool, error) {
	created := false
	err := s.uow.WithTransaction(ctx, func(ctx context.Context, repos application.TxRepositories) error {
		wallet, err := repos.Wallets.ClaimForPayout(ctx, walletID)
		if err != nil {
			return err
		}

		minimum, ok := s.cfg.MinimumsCents[wallet.Currency]
		if !ok {
			s.logger.Warn("no payout minimum configured for currency",
				"currency", wallet.Currency, "wallet_id", wallet.ID)
			return nil
		}
		if wallet.AvailableBalanceCents < minimum {
			return nil
		}

		_, err = s.createPayout(ctx, repos, wallet, mode)
		if err == nil {
			created = true
		}
		return err
	})
	if err != nil {
		if errors.Is(err, application.ErrWalletBusy) {
			return false, nil
		}
		return false, err
	}

	return created, nil
}

// createPayout writes the payout row and zeroes the balance inside the
// caller's row-locked transaction.
func (s *PayoutService) createPayout(ctx context.Context, repos application.TxRepositories, wallet *domain.Wallet, mode domain.PayoutMode) (*domain.Payout, error) {
	now := time.Now().UTC()
	payout := &domain.Payout{
		ID:          uuid.New().String(),
		WalletID:    wallet.ID,
		CreatorID:   wallet.CreatorID,
		AmountCents: wallet.AvailableBalanceCents,
		Currency:    wallet.Currency,
		Mode:        mode,
		Status:      domain.PayoutPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := repos.Payouts.Create(ctx, payout); err != nil {
		return nil, err
	}
	if err := repos.Wallets.Debit(ctx, wallet.ID, wallet.AvailableBalanceCents); err != nil {
		return nil, err
	}

	return payout, nil
}
