package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/application/services/testhelpers"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/domain"
	"github.com/lumapix/payments-service/internal/infrastructure/persistence/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type PayoutIntegrationSuite struct {
	suite.Suite
	testDB     *testhelpers.TestDatabase
	walletRepo *postgres.WalletRepository
	payoutRepo *postgres.PayoutRepository
	lease      *fakeLease
	service    *PayoutService
}

func TestPayoutIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Run(t, new(PayoutIntegrationSuite))
}

func (s *PayoutIntegrationSuite) SetupSuite() {
	s.testDB = testhelpers.SetupTestDatabase(s.T())
	s.walletRepo = postgres.NewWalletRepository(s.testDB.DB)
	s.payoutRepo = postgres.NewPayoutRepository(s.testDB.DB)
}

func (s *PayoutIntegrationSuite) TearDownSuite() {
	s.testDB.Cleanup(s.T())
}

func (s *PayoutIntegrationSuite) SetupTest() {
	s.testDB.CleanTables(s.T())

	s.lease = newFakeLease()
	s.service = NewPayoutService(
		postgres.NewTransactionCoordinator(s.testDB.DB, discardLogger()),
		s.walletRepo,
		s.payoutRepo,
		postgres.NewSettingsRepository(s.testDB.DB),
		s.lease,
		config.PayoutConfig{
			MinimumsCents:  map[string]int64{"USD": 5000},
			LeaseTTL:       time.Minute,
			WorkerInterval: time.Minute,
			BatchSize:      100,
			RetryWindow:    24 * time.Hour,
		},
		discardLogger(),
	)
}

func (s *PayoutIntegrationSuite) seedWalletWithBalance(creatorID string, balanceCents int64) *domain.Wallet {
	t := s.T()
	ctx := context.Background()

	wallet, err := s.walletRepo.FindOrCreate(ctx, creatorID, "USD")
	require.NoError(t, err)

	if balanceCents > 0 {
		credited, err := s.walletRepo.CreditForTransaction(ctx, wallet.ID, uuid.New().String(), balanceCents)
		require.NoError(t, err)
		require.True(t, credited)
	}

	wallet, err = s.walletRepo.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	return wallet
}

func (s *PayoutIntegrationSuite) Test_ThresholdBatch_PaysEligibleWalletsOnly() {
	ctx := context.Background()
	t := s.T()

	rich := s.seedWalletWithBalance("creator-1", 6000)
	poor := s.seedWalletWithBalance("creator-2", 4999)

	result, err := s.service.RunThresholdBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.WalletsScanned)
	assert.Equal(t, 1, result.PayoutsCreated)
	assert.Equal(t, 1, result.WalletsSkipped)

	payouts, err := s.payoutRepo.FindByWalletID(ctx, rich.ID)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, int64(6000), payouts[0].AmountCents)
	assert.Equal(t, domain.PayoutModeThreshold, payouts[0].Mode)
	assert.Equal(t, domain.PayoutPending, payouts[0].Status)

	updated, err := s.walletRepo.FindByID(ctx, rich.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.AvailableBalanceCents, "payout must drain the full balance")

	untouched, err := s.walletRepo.FindByID(ctx, poor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4999), untouched.AvailableBalanceCents)
}

func (s *PayoutIntegrationSuite) Test_ConcurrentBatches_OnePayoutPerWallet() {
	ctx := context.Background()
	t := s.T()

	// Defeat the lease so both runs reach the wallet rows. The row lock alone
	// has to guarantee a single payout.
	s.lease.AcquireFn = func(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
		return func(context.Context) error { return nil }, true, nil
	}

	wallet := s.seedWalletWithBalance("creator-1", 6000)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.RunThresholdBatch(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	payouts, err := s.payoutRepo.FindByWalletID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Len(t, payouts, 1, "row locking must allow exactly one payout")

	updated, err := s.walletRepo.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.AvailableBalanceCents)
}

func (s *PayoutIntegrationSuite) Test_PayoutSingle_IgnoresThreshold() {
	ctx := context.Background()
	t := s.T()

	wallet := s.seedWalletWithBalance("creator-1", 120)

	payout, err := s.service.PayoutSingle(ctx, SinglePayoutCommand{WalletID: wallet.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(120), payout.AmountCents)
	assert.Equal(t, domain.PayoutModeSingle, payout.Mode)

	updated, err := s.walletRepo.FindByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.AvailableBalanceCents)
}

func (s *PayoutIntegrationSuite) Test_PauseBlocksBatchUntilResume() {
	ctx := context.Background()
	t := s.T()

	s.seedWalletWithBalance("creator-1", 6000)

	require.NoError(t, s.service.Pause(ctx))

	_, err := s.service.RunThresholdBatch(ctx)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodePayoutsPaused, svcErr.Code)

	require.NoError(t, s.service.Resume(ctx))

	result, err := s.service.RunThresholdBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PayoutsCreated)
}

func (s *PayoutIntegrationSuite) Test_RetryFailed_HonorsWindow() {
	ctx := context.Background()
	t := s.T()

	wallet := s.seedWalletWithBalance("creator-1", 0)
	now := time.Now().UTC()

	mkPayout := func(status domain.PayoutStatus, createdAt time.Time) *domain.Payout {
		p := &domain.Payout{
			ID:          uuid.New().String(),
			WalletID:    wallet.ID,
			CreatorID:   wallet.CreatorID,
			AmountCents: 1000,
			Currency:    "USD",
			Mode:        domain.PayoutModeThreshold,
			Status:      status,
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		}
		require.NoError(t, s.payoutRepo.Create(ctx, p))
		return p
	}

	recent := mkPayout(domain.PayoutFailed, now.Add(-1*time.Hour))
	stale := mkPayout(domain.PayoutFailed, now.Add(-48*time.Hour))
	settled := mkPayout(domain.PayoutSucceeded, now.Add(-1*time.Hour))

	moved, err := s.service.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	payouts, err := s.payoutRepo.FindByWalletID(ctx, wallet.ID)
	require.NoError(t, err)

	statuses := make(map[string]domain.PayoutStatus, len(payouts))
	for _, p := range payouts {
		statuses[p.ID] = p.Status
	}
	assert.Equal(t, domain.PayoutPending, statuses[recent.ID], "recent failure requeues")
	assert.Equal(t, domain.PayoutFailed, statuses[stale.ID], "stale failure stays for review")
	assert.Equal(t, domain.PayoutSucceeded, statuses[settled.ID])
}
