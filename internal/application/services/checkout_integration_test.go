package services

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/application/services/testhelpers"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/currency"
	"github.com/lumapix/payments-service/internal/domain"
	"github.com/lumapix/payments-service/internal/infrastructure/persistence/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CheckoutIntegrationSuite struct {
	suite.Suite
	testDB  *testhelpers.TestDatabase
	ledger  *postgres.IdempotencyRepository
	txRepo  *postgres.TransactionRepository
	client  *fakeProviderClient
	service *CheckoutService
}

func TestCheckoutIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Run(t, new(CheckoutIntegrationSuite))
}

func (s *CheckoutIntegrationSuite) SetupSuite() {
	s.testDB = testhelpers.SetupTestDatabase(s.T())
	s.ledger = postgres.NewIdempotencyRepository(s.testDB.DB)
	s.txRepo = postgres.NewTransactionRepository(s.testDB.DB)
}

func (s *CheckoutIntegrationSuite) TearDownSuite() {
	s.testDB.Cleanup(s.T())
}

func (s *CheckoutIntegrationSuite) SetupTest() {
	s.testDB.CleanTables(s.T())

	source, err := currency.NewStaticSource("USD", map[string]string{"NGN": "1500"})
	require.NoError(s.T(), err)
	converter := currency.NewConverter(source, "USD", time.Minute, map[string]string{"NG": "NGN"})

	selector := NewGatewaySelector([]config.GatewayRule{
		{Provider: "stripe", Enabled: true},
	}, discardLogger())

	s.client = &fakeProviderClient{provider: domain.ProviderStripe}
	s.service = NewCheckoutService(
		s.ledger,
		s.txRepo,
		converter,
		selector,
		newFakeResolver(s.client),
		config.PricingConfig{MediaUnitPriceCents: 500, CreditUnitPriceCents: 100, PlatformFeePercent: 20},
		discardLogger(),
	)
}

func (s *CheckoutIntegrationSuite) Test_Checkout_PersistsAndReplays() {
	ctx := context.Background()
	t := s.T()
	cmd := mediaCommand()

	first, err := s.service.Checkout(ctx, cmd, "key-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, first.StatusCode)

	second, err := s.service.Checkout(ctx, cmd, "key-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, []byte(first.Body), []byte(second.Body), "stored body must replay byte-identical")

	txs, err := s.txRepo.FindByActorID(ctx, cmd.ActorID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1, "replay must not create a second transaction")
	assert.Equal(t, domain.TxPending, txs[0].Status)
	require.NotNil(t, txs[0].ProviderRef)
}

func (s *CheckoutIntegrationSuite) Test_Checkout_KeyReuseWithDifferentBodyConflicts() {
	ctx := context.Background()
	t := s.T()

	_, err := s.service.Checkout(ctx, mediaCommand(), "key-1")
	require.NoError(t, err)

	other := mediaCommand()
	other.MediaIDs = []string{"m9"}

	_, err = s.service.Checkout(ctx, other, "key-1")
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeIdempotencyConflict, svcErr.Code)
}

func (s *CheckoutIntegrationSuite) Test_ConcurrentClaims_ExactlyOneOwner() {
	ctx := context.Background()
	t := s.T()

	const callers = 8
	outcomes := make(chan domain.ClaimOutcome, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claim, err := s.ledger.Claim(ctx, ScopeCheckout, "actor-1", "key-race", "hash-1")
			if err != nil {
				t.Errorf("claim failed: %v", err)
				return
			}
			outcomes <- claim.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	owners, inFlight := 0, 0
	for outcome := range outcomes {
		switch outcome {
		case domain.ClaimOwner:
			owners++
		case domain.ClaimInFlight:
			inFlight++
		default:
			t.Errorf("unexpected claim outcome: %d", outcome)
		}
	}
	assert.Equal(t, 1, owners, "primary key must arbitrate exactly one owner")
	assert.Equal(t, callers-1, inFlight)
}

func (s *CheckoutIntegrationSuite) Test_Finalize_FirstWriteWins() {
	ctx := context.Background()
	t := s.T()

	claim, err := s.ledger.Claim(ctx, ScopeCheckout, "actor-1", "key-1", "hash-1")
	require.NoError(t, err)
	require.Equal(t, domain.ClaimOwner, claim.Outcome)

	require.NoError(t, s.ledger.Finalize(ctx, ScopeCheckout, "actor-1", "key-1",
		domain.IdemCompleted, http.StatusCreated, []byte(`{"first":true}`), nil))

	// A late second finalization must not clobber the stored outcome.
	require.NoError(t, s.ledger.Finalize(ctx, ScopeCheckout, "actor-1", "key-1",
		domain.IdemFailed, http.StatusInternalServerError, []byte(`{"first":false}`), nil))

	claim, err = s.ledger.Claim(ctx, ScopeCheckout, "actor-1", "key-1", "hash-1")
	require.NoError(t, err)
	require.Equal(t, domain.ClaimReplay, claim.Outcome)
	assert.Equal(t, domain.IdemCompleted, claim.Record.Status)
	assert.Equal(t, http.StatusCreated, claim.Record.ResponseCode)
	assert.JSONEq(t, `{"first":true}`, string(claim.Record.ResponseBody))
}

func (s *CheckoutIntegrationSuite) Test_DuplicateProviderRefRejected() {
	ctx := context.Background()
	t := s.T()

	meta := domain.TransactionMetadata{MediaIDs: []string{"m1"}}

	tx1, err := domain.NewTransaction(uuid.New().String(), "actor-1", 500, "USD", domain.ProviderStripe, meta)
	require.NoError(t, err)
	tx1.AttachProviderRef("sess_dup")
	require.NoError(t, s.txRepo.Create(ctx, tx1))

	tx2, err := domain.NewTransaction(uuid.New().String(), "actor-2", 500, "USD", domain.ProviderStripe, meta)
	require.NoError(t, err)
	require.NoError(t, s.txRepo.Create(ctx, tx2))

	tx2.AttachProviderRef("sess_dup")
	err = s.txRepo.Update(ctx, tx2)
	assert.ErrorIs(t, err, application.ErrDuplicateProviderRef)
}
