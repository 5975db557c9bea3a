// internal/service/fixture_test.go
package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lotto-ledger/internal/config"
	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/repository/sqlstore"
	"lotto-ledger/internal/util"
	"lotto-ledger/pkg/db"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// ledgerFixture is a ledger engine on a private in-memory SQLite database.
type ledgerFixture struct {
	db             *sqlx.DB
	ledger         LedgerService
	limits         PaymentLimitService
	history        CreditHistoryService
	participations repository.ParticipationRepository
	kinds          map[domain.ActorKind]KindStore
}

type fixtureOption func(*LedgerDeps)

func withFeePolicy(p CancellationFeePolicy) fixtureOption {
	return func(d *LedgerDeps) { d.FeePolicy = p }
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		DefaultCurrency:                  "XAF",
		AgentUnitValue:                   decimal.NewFromInt(1),
		AgentPayoutCommissionPercent:     decimal.NewFromInt(2),
		AgentDefaultBetCommissionPercent: decimal.Zero,
		StaffDefaultBetCommissionPercent: decimal.Zero,
		DefaultPaymentLimit:              decimal.NewFromInt(50000),
		CancellationWindow:               15 * time.Minute,
		TxMaxAttempts:                    3,
		TxRetryBackoff:                   time.Millisecond,
	}
}

func newLedgerFixture(t *testing.T, opts ...fixtureOption) *ledgerFixture {
	t.Helper()

	database, err := db.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.Migrate(context.Background(), database, string(domain.ActorKindAgent), string(domain.ActorKindStaff)))

	cfg := testLedgerConfig()
	logger := util.DiscardLogger()
	clock := util.FixedClock{At: testNow}

	agentStore := NewSQLKindStore(domain.ActorKindAgent)
	staffStore := NewSQLKindStore(domain.ActorKindStaff)
	limits := NewPaymentLimitService(database, sqlstore.NewPaymentLimitRepository(), nil,
		cfg.DefaultPaymentLimit, cfg.DefaultCurrency, clock, nil, logger)
	participations := sqlstore.NewParticipationRepository()
	historyRepo := sqlstore.NewCreditHistoryRepository()

	deps := LedgerDeps{
		DBBeginner: database,
		DBExecutor: database,
		Kinds: []KindBinding{
			{Policy: AgentPolicy(cfg), Store: agentStore},
			{Policy: StaffPolicy(cfg), Store: staffStore},
		},
		ActorRepo:          sqlstore.NewActorRepository(),
		ParticipationRepo:  participations,
		CreditHistoryRepo:  historyRepo,
		Limits:             limits,
		CancellationWindow: cfg.CancellationWindow,
		DefaultCurrency:    cfg.DefaultCurrency,
		BeginTx:            db.BeginTx,
		CommitTx:           db.CommitTx,
		RollbackTx:         db.RollbackTx,
		Retry:              RetryPolicy{MaxAttempts: cfg.TxMaxAttempts, Backoff: cfg.TxRetryBackoff},
		Clock:              clock,
		Logger:             logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &ledgerFixture{
		db:             database,
		ledger:         NewLedgerService(deps),
		limits:         limits,
		history:        NewCreditHistoryService(database, historyRepo, clock, logger),
		participations: participations,
		kinds: map[domain.ActorKind]KindStore{
			domain.ActorKindAgent: agentStore,
			domain.ActorKindStaff: staffStore,
		},
	}
}

// fund creates the actor's wallets and credits main with amount.
func (f *ledgerFixture) fund(t *testing.T, kind domain.ActorKind, actorID string, amount string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.ledger.GetOrCreateWallets(ctx, kind, actorID, actorID+"@shop.test")
	require.NoError(t, err)
	if d := dec(amount); d.IsPositive() {
		_, _, err = f.ledger.CreditWallet(ctx, kind, actorID, d, nil)
		require.NoError(t, err)
	}
}

// setCommissionBalance writes a commission balance directly, bypassing the ledger.
func (f *ledgerFixture) setCommissionBalance(t *testing.T, kind domain.ActorKind, actorID string, amount string) {
	t.Helper()
	query := f.db.Rebind("UPDATE " + string(kind) + "_commission_wallets SET balance_minor = ? WHERE id = ?")
	_, err := f.db.Exec(query, dec(amount).Shift(4).IntPart(), actorID)
	require.NoError(t, err)
}

func (f *ledgerFixture) wallets(t *testing.T, kind domain.ActorKind, actorID string) *domain.WalletPair {
	t.Helper()
	pair, err := f.ledger.GetWallets(context.Background(), kind, actorID)
	require.NoError(t, err)
	return pair
}

func (f *ledgerFixture) ticket(t *testing.T, id string) *domain.Participation {
	t.Helper()
	p, err := f.participations.GetParticipationByID(context.Background(), f.db, id)
	require.NoError(t, err)
	return p
}

type ticketOpts struct {
	id        string
	owner     string
	kind      domain.ActorKind
	stake     string
	winAmount string // non-empty marks the ticket as a completed winner
	boughtAgo time.Duration
}

func (f *ledgerFixture) createTicket(t *testing.T, opts ticketOpts) *domain.Participation {
	t.Helper()
	kind := opts.kind
	if kind == "" {
		kind = domain.ActorKindAgent
	}
	p := &domain.Participation{
		ID:           opts.id,
		UserID:       opts.owner,
		UserType:     kind,
		BetType:      domain.BetTypeSimple,
		Stake:        decimal.Zero,
		Currency:     "XAF",
		PurchaseDate: testNow.Add(-opts.boughtAgo),
		WinAmount:    decimal.Zero,
		Status:       domain.ParticipationActive,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	if opts.stake != "" {
		p.Stake = dec(opts.stake)
	}
	if opts.winAmount != "" {
		p.IsWinner = true
		p.WinAmount = dec(opts.winAmount)
		p.Status = domain.ParticipationCompleted
	}
	require.NoError(t, f.participations.CreateParticipation(context.Background(), f.db, p))
	return p
}

// ledgerSum is the signed total of every record for actorID.
func (f *ledgerFixture) ledgerSum(t *testing.T, kind domain.ActorKind, actorID string) decimal.Decimal {
	t.Helper()
	records, _, err := f.kinds[kind].Transactions.GetTransactionsByWalletID(context.Background(), f.db, actorID, 1000, 0)
	require.NoError(t, err)
	sum := decimal.Zero
	for i := range records {
		sum = sum.Add(records[i].Signed())
	}
	return sum
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
