// internal/service/ledger_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/metrics"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/util"
	"lotto-ledger/pkg/db"
)

// amountScale is the number of decimal places the store keeps for money.
const amountScale = 4

// maxAmount is the largest balance a wallet column can hold.
var maxAmount = decimal.New(9, 14)

// Operation names used in logs, metrics and error prefixes.
const (
	opGetOrCreateWallets  = "get_or_create_wallets"
	opGetWallets          = "get_wallets"
	opListTransactions    = "list_transactions"
	opCreditWallet        = "credit_wallet"
	opDeductForBet        = "deduct_for_bet"
	opProcessPayout       = "process_payout"
	opConvertCommission   = "convert_commission"
	opCancelParticipation = "cancel_participation"
	opRecordDrawResult    = "record_draw_result"
	opRegisterTicket      = "register_participation"
	opSetCommissionRate   = "set_commission_rate"
	opSetPermissions      = "set_actor_permissions"
)

// LedgerService moves money between an actor's main balance, commission
// balance and lottery tickets. Every money operation runs in one store
// transaction and re-validates its preconditions inside it.
type LedgerService interface {
	GetOrCreateWallets(ctx context.Context, kind domain.ActorKind, actorID, email string) (*domain.WalletPair, error)
	GetWallets(ctx context.Context, kind domain.ActorKind, actorID string) (*domain.WalletPair, error)
	ListTransactions(ctx context.Context, kind domain.ActorKind, walletID string, limit, offset int) ([]domain.Transaction, int64, error)
	CreditWallet(ctx context.Context, kind domain.ActorKind, walletID string, amount decimal.Decimal, admin *domain.AdminRef) (*domain.Wallet, *domain.Transaction, error)
	DeductForBet(ctx context.Context, kind domain.ActorKind, walletID string, amount decimal.Decimal, referenceID *string) (*domain.WalletPair, error)
	ProcessPayout(ctx context.Context, kind domain.ActorKind, actorID, ticketID string, winAmount decimal.Decimal) (*PayoutResult, error)
	ConvertCommissionToBalance(ctx context.Context, kind domain.ActorKind, actorID string, amount decimal.Decimal) (*domain.WalletPair, error)
	CancelParticipation(ctx context.Context, kind domain.ActorKind, ticketID, actorID string) (*domain.Participation, error)
	RecordDrawResult(ctx context.Context, ticketID string, isWinner bool, winAmount decimal.Decimal) (*domain.Participation, error)
	RegisterParticipation(ctx context.Context, kind domain.ActorKind, actorID string, sale domain.TicketSale) (*domain.Participation, error)
	SetCommissionRate(ctx context.Context, kind domain.ActorKind, betType string, percentage decimal.Decimal) (*domain.CommissionRate, error)
	SetActorPermissions(ctx context.Context, kind domain.ActorKind, actorID string, canProcessPayment, canConvertCommission *bool) (*domain.Actor, error)
}

// PayoutResult is the state after a successful payout.
type PayoutResult struct {
	Ticket           *domain.Participation `json:"ticket"`
	Wallets          *domain.WalletPair    `json:"wallets"`
	PaymentAmount    decimal.Decimal       `json:"payment_amount"`
	CommissionAmount decimal.Decimal       `json:"commission_amount"`
}

// LedgerDeps collects everything the ledger engine is built from.
type LedgerDeps struct {
	DBBeginner db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	DBExecutor repository.DBExecutor // For advisory reads outside a transaction
	Kinds      []KindBinding

	ActorRepo         repository.ActorRepository
	ParticipationRepo repository.ParticipationRepository
	CreditHistoryRepo repository.CreditHistoryRepository
	Limits            PaymentLimitService

	FeePolicy          CancellationFeePolicy
	CancellationWindow time.Duration
	DefaultCurrency    string

	BeginTx    db.BeginTxFunc
	CommitTx   db.CommitTxFunc
	RollbackTx db.RollbackTxFunc
	Retry      RetryPolicy

	Clock   util.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type ledgerService struct {
	dbExecutor         repository.DBExecutor
	tx                 *txRunner
	kinds              map[domain.ActorKind]KindBinding
	actorRepo          repository.ActorRepository
	participationRepo  repository.ParticipationRepository
	creditHistoryRepo  repository.CreditHistoryRepository
	limits             PaymentLimitService
	feePolicy          CancellationFeePolicy
	cancellationWindow time.Duration
	defaultCurrency    string
	clock              util.Clock
	metrics            *metrics.Metrics
	logger             *slog.Logger
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(deps LedgerDeps) LedgerService {
	kinds := make(map[domain.ActorKind]KindBinding, len(deps.Kinds))
	for _, k := range deps.Kinds {
		kinds[k.Policy.Kind] = k
	}
	feePolicy := deps.FeePolicy
	if feePolicy == nil {
		feePolicy = NoCancellationFee{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ledgerService{
		dbExecutor: deps.DBExecutor,
		tx: &txRunner{
			dbBeginner: deps.DBBeginner,
			beginTx:    deps.BeginTx,
			commitTx:   deps.CommitTx,
			rollbackTx: deps.RollbackTx,
			retry:      deps.Retry,
			metrics:    deps.Metrics,
			logger:     logger,
		},
		kinds:              kinds,
		actorRepo:          deps.ActorRepo,
		participationRepo:  deps.ParticipationRepo,
		creditHistoryRepo:  deps.CreditHistoryRepo,
		limits:             deps.Limits,
		feePolicy:          feePolicy,
		cancellationWindow: deps.CancellationWindow,
		defaultCurrency:    deps.DefaultCurrency,
		clock:              clock,
		metrics:            deps.Metrics,
		logger:             logger,
	}
}

// GetOrCreateWallets creates both wallets and the actor profile when absent.
func (s *ledgerService) GetOrCreateWallets(ctx context.Context, kind domain.ActorKind, actorID, email string) (pair *domain.WalletPair, err error) {
	defer s.observe(opGetOrCreateWallets, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, err
	}
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", util.ErrInvalidInput)
	}

	err = s.tx.run(ctx, opGetOrCreateWallets, func(q repository.DBExecutor) error {
		now := s.clock.Now()

		main := domain.NewWallet(actorID, email, s.defaultCurrency, now)
		main.UnitValue = b.Policy.UnitValue
		created, err := b.Store.MainWallets.CreateWalletIfAbsent(ctx, q, main)
		if err != nil {
			return fmt.Errorf("get or create wallets: failed to create main wallet: %w", err)
		}
		commission := domain.NewWallet(actorID, email, s.defaultCurrency, now)
		if _, err := b.Store.CommissionWallets.CreateWalletIfAbsent(ctx, q, commission); err != nil {
			return fmt.Errorf("get or create wallets: failed to create commission wallet: %w", err)
		}
		if err := s.actorRepo.CreateActorIfAbsent(ctx, q, domain.NewActor(actorID, email, kind, now)); err != nil {
			return fmt.Errorf("get or create wallets: failed to create actor profile: %w", err)
		}

		p, err := s.getPair(ctx, q, b.Store, actorID)
		if err != nil {
			return err
		}
		if created {
			s.logger.Info("Wallets created", "kind", kind, "actor_id", actorID, "currency", p.Main.Currency)
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// GetWallets returns both wallets of an existing actor.
func (s *ledgerService) GetWallets(ctx context.Context, kind domain.ActorKind, actorID string) (pair *domain.WalletPair, err error) {
	defer s.observe(opGetWallets, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, err
	}
	return s.getPair(ctx, s.dbExecutor, b.Store, actorID)
}

// ListTransactions retrieves a paginated list of ledger records for a wallet.
func (s *ledgerService) ListTransactions(ctx context.Context, kind domain.ActorKind, walletID string, limit, offset int) (records []domain.Transaction, total int64, err error) {
	defer s.observe(opListTransactions, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.getWallet(ctx, s.dbExecutor, b.Store.MainWallets, walletID); err != nil {
		return nil, 0, err
	}

	records, total, err = b.Store.Transactions.GetTransactionsByWalletID(ctx, s.dbExecutor, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: failed to retrieve transaction history: %w", err)
	}
	return records, total, nil
}

// CreditWallet adds amount to the main balance. When admin is set, the
// credit history entry is written in the same transaction.
func (s *ledgerService) CreditWallet(ctx context.Context, kind domain.ActorKind, walletID string, amount decimal.Decimal, admin *domain.AdminRef) (wallet *domain.Wallet, record *domain.Transaction, err error) {
	defer s.observe(opCreditWallet, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}

	err = s.tx.run(ctx, opCreditWallet, func(q repository.DBExecutor) error {
		now := s.clock.Now()

		main, err := s.getWallet(ctx, q, b.Store.MainWallets, walletID)
		if err != nil {
			return err
		}
		if err := b.Store.MainWallets.CreditBalance(ctx, q, main.ID, amount, now); err != nil {
			return fmt.Errorf("credit wallet: failed to update wallet balance: %w", err)
		}
		t, err := s.record(ctx, q, b.Store, main, domain.WalletTypeMain, domain.TransactionTypeCredit, amount, domain.ReferenceAdminCredit, nil, now)
		if err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		if admin != nil {
			entry := domain.NewCreditHistoryEntry(*admin, main, kind, amount, now)
			if err := s.creditHistoryRepo.CreateEntry(ctx, q, entry); err != nil {
				return fmt.Errorf("credit wallet: failed to record credit history: %w", err)
			}
		}

		updated, err := s.getWallet(ctx, q, b.Store.MainWallets, walletID)
		if err != nil {
			return err
		}
		wallet, record = updated, t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Wallet credited", "kind", kind, "wallet_id", walletID, "amount", amount, "balance", wallet.Balance)
	return wallet, record, nil
}

// DeductForBet debits a ticket sale from the main balance and accrues the
// sale commission on the commission balance.
func (s *ledgerService) DeductForBet(ctx context.Context, kind domain.ActorKind, walletID string, amount decimal.Decimal, referenceID *string) (pair *domain.WalletPair, err error) {
	defer s.observe(opDeductForBet, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, err
	}
	if !b.Policy.SupportsBetDeduction {
		return nil, util.ErrOperationNotSupported.WithMessage("bet deduction is not available for %s wallets", kind)
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	// Advisory check; the guarded debit below is authoritative.
	main, err := s.getWallet(ctx, s.dbExecutor, b.Store.MainWallets, walletID)
	if err != nil {
		return nil, err
	}
	if main.Balance.LessThan(amount) {
		return nil, util.NewInsufficientBalance(util.KindInsufficientBalance, amount, main.Balance, main.Currency)
	}

	err = s.tx.run(ctx, opDeductForBet, func(q repository.DBExecutor) error {
		now := s.clock.Now()

		main, err := s.getWallet(ctx, q, b.Store.MainWallets, walletID)
		if err != nil {
			return err
		}
		commissionWallet, err := s.getWallet(ctx, q, b.Store.CommissionWallets, walletID)
		if err != nil {
			return err
		}

		debited, err := b.Store.MainWallets.DebitBalance(ctx, q, walletID, amount, now)
		if err != nil {
			return fmt.Errorf("deduct for bet: failed to update wallet balance: %w", err)
		}
		if !debited {
			return util.NewInsufficientBalance(util.KindInsufficientBalance, amount, main.Balance, main.Currency)
		}
		if _, err := s.record(ctx, q, b.Store, main, domain.WalletTypeMain, domain.TransactionTypeDebit, amount, domain.ReferenceBet, referenceID, now); err != nil {
			return fmt.Errorf("deduct for bet: %w", err)
		}

		percent, err := s.betCommissionPercent(ctx, q, b, domain.BetTypeSimple)
		if err != nil {
			return fmt.Errorf("deduct for bet: %w", err)
		}
		commission := domain.CommissionOn(amount, percent).Round(amountScale)
		if commission.IsPositive() {
			if err := b.Store.CommissionWallets.CreditBalance(ctx, q, walletID, commission, now); err != nil {
				return fmt.Errorf("deduct for bet: failed to update commission balance: %w", err)
			}
			if _, err := s.record(ctx, q, b.Store, commissionWallet, domain.WalletTypeCommission, domain.TransactionTypeCommission, commission, domain.ReferenceBet, referenceID, now); err != nil {
				return fmt.Errorf("deduct for bet: %w", err)
			}
		}

		p, err := s.getPair(ctx, q, b.Store, walletID)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Bet deducted", "kind", kind, "wallet_id", walletID, "amount", amount, "balance", pair.Main.Balance, "commission_balance", pair.Commission.Balance)
	return pair, nil
}

// ConvertCommissionToBalance moves amount from the commission balance to the
// main balance.
func (s *ledgerService) ConvertCommissionToBalance(ctx context.Context, kind domain.ActorKind, actorID string, amount decimal.Decimal) (pair *domain.WalletPair, err error) {
	defer s.observe(opConvertCommission, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	actor, err := s.actorProfile(ctx, s.dbExecutor, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.ConversionAllowed() {
		return nil, util.ErrConversionDisabled
	}

	commissionWallet, err := s.getWallet(ctx, s.dbExecutor, b.Store.CommissionWallets, actorID)
	if err != nil {
		return nil, err
	}
	if commissionWallet.Balance.LessThan(amount) {
		return nil, util.NewInsufficientBalance(util.KindInsufficientCommissionBalance, amount, commissionWallet.Balance, commissionWallet.Currency)
	}

	err = s.tx.run(ctx, opConvertCommission, func(q repository.DBExecutor) error {
		now := s.clock.Now()

		commissionWallet, err := s.getWallet(ctx, q, b.Store.CommissionWallets, actorID)
		if err != nil {
			return err
		}
		main, err := s.getWallet(ctx, q, b.Store.MainWallets, actorID)
		if err != nil {
			return err
		}

		debited, err := b.Store.CommissionWallets.DebitBalance(ctx, q, actorID, amount, now)
		if err != nil {
			return fmt.Errorf("convert commission: failed to update commission balance: %w", err)
		}
		if !debited {
			return util.NewInsufficientBalance(util.KindInsufficientCommissionBalance, amount, commissionWallet.Balance, commissionWallet.Currency)
		}
		if _, err := s.record(ctx, q, b.Store, commissionWallet, domain.WalletTypeCommission, domain.TransactionTypeDebit, amount, domain.ReferenceCommissionConversion, nil, now); err != nil {
			return fmt.Errorf("convert commission: %w", err)
		}

		if err := b.Store.MainWallets.CreditBalance(ctx, q, actorID, amount, now); err != nil {
			return fmt.Errorf("convert commission: failed to update wallet balance: %w", err)
		}
		if _, err := s.record(ctx, q, b.Store, main, domain.WalletTypeMain, domain.TransactionTypeCredit, amount, domain.ReferenceCommissionConversion, nil, now); err != nil {
			return fmt.Errorf("convert commission: %w", err)
		}

		p, err := s.getPair(ctx, q, b.Store, actorID)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Commission converted", "kind", kind, "actor_id", actorID, "amount", amount, "balance", pair.Main.Balance, "commission_balance", pair.Commission.Balance)
	return pair, nil
}

// SetCommissionRate stores the sale commission percentage for a bet type.
func (s *ledgerService) SetCommissionRate(ctx context.Context, kind domain.ActorKind, betType string, percentage decimal.Decimal) (rate *domain.CommissionRate, err error) {
	defer s.observe(opSetCommissionRate, kind, time.Now(), &err)

	b, err := s.binding(kind)
	if err != nil {
		return nil, err
	}
	if betType == "" {
		return nil, fmt.Errorf("%w: bet type is required", util.ErrInvalidInput)
	}
	if !domain.ValidPercentage(percentage) {
		return nil, fmt.Errorf("%w: percentage %s must be within [0, 100]", util.ErrInvalidInput, percentage)
	}
	if !percentage.Equal(percentage.Round(amountScale)) {
		return nil, fmt.Errorf("%w: percentage %s has more than %d decimal places", util.ErrInvalidInput, percentage, amountScale)
	}

	rate = &domain.CommissionRate{
		BetType:    betType,
		Percentage: percentage,
		UpdatedAt:  s.clock.Now(),
	}
	if err := b.Store.Commissions.UpsertRate(ctx, s.dbExecutor, rate); err != nil {
		return nil, fmt.Errorf("set commission rate: %w", err)
	}
	s.logger.Info("Commission rate updated", "kind", kind, "bet_type", betType, "percentage", percentage)
	return rate, nil
}

// SetActorPermissions updates the flags that are not nil. A profile of
// another kind counts as missing.
func (s *ledgerService) SetActorPermissions(ctx context.Context, kind domain.ActorKind, actorID string, canProcessPayment, canConvertCommission *bool) (actor *domain.Actor, err error) {
	defer s.observe(opSetPermissions, kind, time.Now(), &err)

	if _, err := s.binding(kind); err != nil {
		return nil, err
	}
	err = s.tx.run(ctx, opSetPermissions, func(q repository.DBExecutor) error {
		a, err := s.actorRepo.GetActorByID(ctx, q, actorID)
		if err != nil {
			if errors.Is(err, util.ErrNotFound) {
				return fmt.Errorf("set actor permissions: actor %s: %w", actorID, util.ErrNotFound)
			}
			return fmt.Errorf("set actor permissions: %w", err)
		}
		if a.Kind != kind {
			return fmt.Errorf("set actor permissions: no %s actor %s: %w", kind, actorID, util.ErrNotFound)
		}
		if canProcessPayment != nil {
			a.CanProcessPayment = canProcessPayment
		}
		if canConvertCommission != nil {
			a.CanConvertCommission = canConvertCommission
		}
		a.UpdatedAt = s.clock.Now()
		if err := s.actorRepo.UpdatePermissions(ctx, q, a); err != nil {
			return fmt.Errorf("set actor permissions: %w", err)
		}
		actor = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Actor permissions updated", "actor_id", actorID, "payment_allowed", actor.PaymentAllowed(), "conversion_allowed", actor.ConversionAllowed())
	return actor, nil
}

func (s *ledgerService) binding(kind domain.ActorKind) (KindBinding, error) {
	b, ok := s.kinds[kind]
	if !ok {
		return KindBinding{}, fmt.Errorf("%w: unknown actor kind %q", util.ErrInvalidInput, kind)
	}
	return b, nil
}

func (s *ledgerService) getWallet(ctx context.Context, q repository.DBExecutor, repo repository.WalletRepository, id string) (*domain.Wallet, error) {
	wallet, err := repo.GetWalletByID(ctx, q, id)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrWalletNotFound.WithMessage("wallet %s not found", id)
		}
		return nil, err
	}
	return wallet, nil
}

func (s *ledgerService) getPair(ctx context.Context, q repository.DBExecutor, store KindStore, actorID string) (*domain.WalletPair, error) {
	main, err := s.getWallet(ctx, q, store.MainWallets, actorID)
	if err != nil {
		return nil, err
	}
	commission, err := s.getWallet(ctx, q, store.CommissionWallets, actorID)
	if err != nil {
		return nil, err
	}
	return &domain.WalletPair{Main: main, Commission: commission}, nil
}

// actorProfile returns nil without error when the actor has no profile.
func (s *ledgerService) actorProfile(ctx context.Context, q repository.DBExecutor, actorID string) (*domain.Actor, error) {
	actor, err := s.actorRepo.GetActorByID(ctx, q, actorID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read actor profile %s: %w", actorID, err)
	}
	return actor, nil
}

func (s *ledgerService) betCommissionPercent(ctx context.Context, q repository.DBExecutor, b KindBinding, betType string) (decimal.Decimal, error) {
	rate, err := b.Store.Commissions.GetRate(ctx, q, betType)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return b.Policy.DefaultBetCommissionPercent, nil
		}
		return decimal.Zero, err
	}
	return rate.Percentage, nil
}

func (s *ledgerService) record(
	ctx context.Context,
	q repository.DBExecutor,
	store KindStore,
	wallet *domain.Wallet,
	walletType domain.WalletType,
	txType domain.TransactionType,
	amount decimal.Decimal,
	refType domain.ReferenceType,
	referenceID *string,
	now time.Time,
) (*domain.Transaction, error) {
	t := domain.NewTransaction(wallet, walletType, txType, amount, refType, referenceID, now)
	if err := store.Transactions.CreateTransaction(ctx, q, t); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return t, nil
}

func (s *ledgerService) observe(op string, kind domain.ActorKind, started time.Time, errp *error) {
	err := *errp
	s.metrics.ObserveOperation(op, string(kind), started, err)
	if err == nil {
		return
	}
	if errors.Is(err, util.ErrTransactionAborted) || (util.KindOf(err) == "" && !errors.Is(err, util.ErrInvalidInput) && !errors.Is(err, util.ErrNotFound)) {
		s.logger.Error("Ledger operation failed", "operation", op, "kind", kind, "error", err)
		return
	}
	s.logger.Info("Ledger operation rejected", "operation", op, "kind", kind, "reason", err.Error())
}

// validateAmount accepts positive amounts the store can hold exactly.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return util.NewInvalidAmount(amount)
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return util.NewInvalidAmount(amount).WithMessage("amount %s has more than %d decimal places", amount.String(), amountScale)
	}
	if amount.GreaterThan(maxAmount) {
		return util.NewInvalidAmount(amount).WithMessage("amount %s exceeds the maximum of %s", amount.String(), maxAmount.String())
	}
	return nil
}
