package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
)

// In-memory fakes with function-field overrides. Default behavior is a
// well-behaved store; tests override individual methods to inject failures.

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyRecord

	ClaimFn    func(ctx context.Context, scope, actorID, key, requestHash string) (*domain.Claim, error)
	FinalizeFn func(ctx context.Context, scope, actorID, key string, status domain.IdempotencyStatus, responseCode int, responseBody []byte, transactionID *string) error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]*domain.IdempotencyRecord)}
}

func ledgerKey(scope, actorID, key string) string {
	return scope + "|" + actorID + "|" + key
}

func (m *fakeLedger) Claim(ctx context.Context, scope, actorID, key, requestHash string) (*domain.Claim, error) {
	if m.ClaimFn != nil {
		return m.ClaimFn(ctx, scope, actorID, key, requestHash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[ledgerKey(scope, actorID, key)]; ok {
		if record.RequestHash != requestHash {
			return &domain.Claim{Outcome: domain.ClaimConflict, Record: record}, nil
		}
		if record.Status == domain.IdemProcessing {
			return &domain.Claim{Outcome: domain.ClaimInFlight, Record: record}, nil
		}
		return &domain.Claim{Outcome: domain.ClaimReplay, Record: record}, nil
	}

	m.records[ledgerKey(scope, actorID, key)] = &domain.IdempotencyRecord{
		OperationScope: scope,
		ActorID:        actorID,
		Key:            key,
		RequestHash:    requestHash,
		Status:         domain.IdemProcessing,
		CreatedAt:      time.Now(),
	}
	return &domain.Claim{Outcome: domain.ClaimOwner}, nil
}

func (m *fakeLedger) Finalize(ctx context.Context, scope, actorID, key string, status domain.IdempotencyStatus, responseCode int, responseBody []byte, transactionID *string) error {
	if m.FinalizeFn != nil {
		return m.FinalizeFn(ctx, scope, actorID, key, status, responseCode, responseBody, transactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[ledgerKey(scope, actorID, key)]
	if !ok || record.Status != domain.IdemProcessing {
		return nil
	}
	record.Status = status
	record.ResponseCode = responseCode
	record.ResponseBody = responseBody
	record.TransactionID = transactionID
	return nil
}

func (m *fakeLedger) record(scope, actorID, key string) *domain.IdempotencyRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[ledgerKey(scope, actorID, key)]
}

type fakeTransactionRepo struct {
	mu  sync.Mutex
	txs map[string]*domain.Transaction

	CreateFn func(ctx context.Context, tx *domain.Transaction) error
	UpdateFn func(ctx context.Context, tx *domain.Transaction) error
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{txs: make(map[string]*domain.Transaction)}
}

func (m *fakeTransactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.txs[tx.ID] = &cp
	return nil
}

func (m *fakeTransactionRepo) Update(ctx context.Context, tx *domain.Transaction) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[tx.ID]; !ok {
		return application.ErrTransactionNotFound
	}
	cp := *tx
	m.txs[tx.ID] = &cp
	return nil
}

func (m *fakeTransactionRepo) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, application.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *fakeTransactionRepo) FindByIDForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	return m.FindByID(ctx, id)
}

func (m *fakeTransactionRepo) FindByProviderRef(ctx context.Context, provider domain.Provider, ref string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.Provider == provider && tx.ProviderRef != nil && *tx.ProviderRef == ref {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, application.ErrTransactionNotFound
}

func (m *fakeTransactionRepo) FindByActorID(ctx context.Context, actorID string, limit, offset int) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range m.txs {
		if tx.ActorID == actorID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeProviderClient struct {
	provider domain.Provider

	CreateSessionFn func(ctx context.Context, req application.CreateSessionRequest) (*application.CheckoutSession, error)
	VerifyEventFn   func(ctx context.Context, payload []byte, header http.Header) (*application.ProviderEvent, error)
	VerifyChargeFn  func(ctx context.Context, providerRef string) (*application.ChargeStatus, error)
}

func (m *fakeProviderClient) Provider() domain.Provider { return m.provider }

func (m *fakeProviderClient) CreateSession(ctx context.Context, req application.CreateSessionRequest) (*application.CheckoutSession, error) {
	if m.CreateSessionFn != nil {
		return m.CreateSessionFn(ctx, req)
	}
	return &application.CheckoutSession{
		ProviderRef: "ref-" + req.Reference,
		CheckoutURL: "https://pay.example.com/" + req.Reference,
	}, nil
}

func (m *fakeProviderClient) VerifyEvent(ctx context.Context, payload []byte, header http.Header) (*application.ProviderEvent, error) {
	if m.VerifyEventFn != nil {
		return m.VerifyEventFn(ctx, payload, header)
	}
	return nil, fmt.Errorf("VerifyEventFn not set")
}

func (m *fakeProviderClient) VerifyCharge(ctx context.Context, providerRef string) (*application.ChargeStatus, error) {
	if m.VerifyChargeFn != nil {
		return m.VerifyChargeFn(ctx, providerRef)
	}
	return &application.ChargeStatus{ProviderRef: providerRef, Settled: true, RawStatus: "paid"}, nil
}

type fakeResolver struct {
	clients map[domain.Provider]application.ProviderClient
}

func newFakeResolver(clients ...application.ProviderClient) *fakeResolver {
	m := make(map[domain.Provider]application.ProviderClient, len(clients))
	for _, c := range clients {
		m[c.Provider()] = c
	}
	return &fakeResolver{clients: m}
}

func (m *fakeResolver) Get(p domain.Provider) (application.ProviderClient, error) {
	client, ok := m.clients[p]
	if !ok {
		return nil, &application.GatewaySelectionError{Code: application.ErrCodeGatewayDisabled, FailClosed: true}
	}
	return client, nil
}

type fakeWebhookEvents struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeWebhookEvents() *fakeWebhookEvents {
	return &fakeWebhookEvents{seen: make(map[string]bool)}
}

func (m *fakeWebhookEvents) Record(ctx context.Context, provider domain.Provider, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(provider) + "|" + eventID
	if m.seen[key] {
		return application.ErrDuplicateWebhookEvent
	}
	m.seen[key] = true
	return nil
}

type fakeEntitlements struct {
	mu           sync.Mutex
	entitlements map[string]bool
	creditGrants map[string]int64
}

func newFakeEntitlements() *fakeEntitlements {
	return &fakeEntitlements{
		entitlements: make(map[string]bool),
		creditGrants: make(map[string]int64),
	}
}

func (m *fakeEntitlements) GrantEntitlement(ctx context.Context, e *domain.Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entitlements[e.TransactionID+"|"+e.MediaID] = true
	return nil
}

func (m *fakeEntitlements) GrantCredits(ctx context.Context, g *domain.CreditGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creditGrants[g.TransactionID] = g.Credits
	return nil
}

func (m *fakeEntitlements) CountByTransaction(ctx context.Context, transactionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for key := range m.entitlements {
		if strings.HasPrefix(key, transactionID+"|") {
			count++
		}
	}
	return count, nil
}

type fakeWallets struct {
	mu      sync.Mutex
	wallets map[string]*domain.Wallet
	credits map[string]bool

	ClaimForPayoutFn func(ctx context.Context, walletID string) (*domain.Wallet, error)
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{
		wallets: make(map[string]*domain.Wallet),
		credits: make(map[string]bool),
	}
}

func (m *fakeWallets) FindByID(ctx context.Context, id string) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *fakeWallets) FindOrCreate(ctx context.Context, creatorID, currencyCode string) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.CreatorID == creatorID && w.Currency == currencyCode {
			cp := *w
			return &cp, nil
		}
	}
	w := &domain.Wallet{
		ID:        fmt.Sprintf("wallet-%s-%s", creatorID, currencyCode),
		CreatorID: creatorID,
		Currency:  currencyCode,
	}
	m.wallets[w.ID] = w
	cp := *w
	return &cp, nil
}

func (m *fakeWallets) CreditForTransaction(ctx context.Context, walletID, transactionID string, amountCents int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credits[transactionID] {
		return false, nil
	}
	w, ok := m.wallets[walletID]
	if !ok {
		return false, domain.ErrWalletNotFound
	}
	m.credits[transactionID] = true
	w.AvailableBalanceCents += amountCents
	return true, nil
}

func (m *fakeWallets) ClaimForPayout(ctx context.Context, walletID string) (*domain.Wallet, error) {
	if m.ClaimForPayoutFn != nil {
		return m.ClaimForPayoutFn(ctx, walletID)
	}
	return m.FindByID(ctx, walletID)
}

func (m *fakeWallets) ListEligibleIDs(ctx context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, w := range m.wallets {
		if w.AvailableBalanceCents > 0 && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *fakeWallets) Debit(ctx context.Context, walletID string, amountCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return domain.ErrWalletNotFound
	}
	if w.AvailableBalanceCents < amountCents {
		return domain.ErrInsufficientBalance
	}
	w.AvailableBalanceCents -= amountCents
	return nil
}

type fakePayouts struct {
	mu      sync.Mutex
	payouts []*domain.Payout

	RequeueFailedFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func newFakePayouts() *fakePayouts { return &fakePayouts{} }

func (m *fakePayouts) Create(ctx context.Context, p *domain.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payouts = append(m.payouts, &cp)
	return nil
}

func (m *fakePayouts) FindByWalletID(ctx context.Context, walletID string) ([]*domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Payout
	for _, p := range m.payouts {
		if p.WalletID == walletID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *fakePayouts) RequeueFailed(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.RequeueFailedFn != nil {
		return m.RequeueFailedFn(ctx, cutoff)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var moved int64
	for _, p := range m.payouts {
		if p.Status == domain.PayoutFailed && !p.CreatedAt.Before(cutoff) {
			p.Status = domain.PayoutPending
			moved++
		}
	}
	return moved, nil
}

type fakeSettings struct {
	mu     sync.Mutex
	paused bool
}

func (m *fakeSettings) PayoutsPaused(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused, nil
}

func (m *fakeSettings) SetPayoutsPaused(ctx context.Context, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
	return nil
}

// fakeLease is an in-memory lease with real mutual exclusion.
type fakeLease struct {
	mu   sync.Mutex
	held map[string]bool

	AcquireFn func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

func newFakeLease() *fakeLease { return &fakeLease{held: make(map[string]bool)} }

func (m *fakeLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	release := func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		return nil
	}
	return release, true, nil
}

// fakeUnitOfWork hands out the same fakes the test asserts on; there is no
// real transaction, fn's writes land directly.
type fakeUnitOfWork struct {
	repos application.TxRepositories

	WithTransactionFn func(ctx context.Context, fn func(ctx context.Context, repos application.TxRepositories) error) error
}

func (m *fakeUnitOfWork) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos application.TxRepositories) error) error {
	if m.WithTransactionFn != nil {
		return m.WithTransactionFn(ctx, fn)
	}
	return fn(ctx, m.repos)
}
