// internal/service/payment_limit_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/metrics"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/util"
)

// PaymentLimitService resolves and administers payout limits.
type PaymentLimitService interface {
	// ResolveLimit returns the limit for actorID, possibly from the cache.
	// A missing configuration never fails: it yields the global seed or the
	// unlimited sentinel.
	ResolveLimit(ctx context.Context, actorID string) (domain.ResolvedLimit, error)
	// ResolveLimitTx resolves against q, bypassing the cache.
	ResolveLimitTx(ctx context.Context, q repository.DBExecutor, actorID string) (domain.ResolvedLimit, error)
	SetGlobalLimit(ctx context.Context, amount decimal.Decimal, currency, updatedBy string) (*domain.PaymentLimit, error)
	SetActorLimit(ctx context.Context, actorID string, amount decimal.Decimal, currency, updatedBy string) (*domain.PaymentLimit, error)
	RemoveActorLimit(ctx context.Context, actorID string) error
	ListLimits(ctx context.Context) ([]domain.PaymentLimit, error)
}

type paymentLimitService struct {
	dbExecutor      repository.DBExecutor
	limitRepo       repository.PaymentLimitRepository
	cache           repository.LimitCache // nil disables caching
	seed            decimal.Decimal
	defaultCurrency string
	clock           util.Clock
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

// NewPaymentLimitService creates a PaymentLimitService. seed is the global
// limit written the first time no global row exists.
func NewPaymentLimitService(
	dbExecutor repository.DBExecutor,
	limitRepo repository.PaymentLimitRepository,
	cache repository.LimitCache,
	seed decimal.Decimal,
	defaultCurrency string,
	clock util.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) PaymentLimitService {
	return &paymentLimitService{
		dbExecutor:      dbExecutor,
		limitRepo:       limitRepo,
		cache:           cache,
		seed:            seed,
		defaultCurrency: defaultCurrency,
		clock:           clock,
		metrics:         m,
		logger:          logger,
	}
}

func (s *paymentLimitService) ResolveLimit(ctx context.Context, actorID string) (domain.ResolvedLimit, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, actorID)
		switch {
		case err != nil:
			s.metrics.ObserveLimitCache("error")
			s.logger.Warn("Payment limit cache read failed", "actor_id", actorID, "error", err)
		case ok:
			s.metrics.ObserveLimitCache("hit")
			return *cached, nil
		default:
			s.metrics.ObserveLimitCache("miss")
		}
	}

	limit, err := s.ResolveLimitTx(ctx, s.dbExecutor, actorID)
	if err != nil {
		return domain.ResolvedLimit{}, err
	}

	if s.cache != nil && !limit.Unlimited() {
		if err := s.cache.Set(ctx, actorID, limit); err != nil {
			s.logger.Warn("Payment limit cache write failed", "actor_id", actorID, "error", err)
		}
	}
	return limit, nil
}

func (s *paymentLimitService) ResolveLimitTx(ctx context.Context, q repository.DBExecutor, actorID string) (domain.ResolvedLimit, error) {
	if actorID != "" && actorID != domain.GlobalLimitID {
		row, err := s.limitRepo.GetLimit(ctx, q, actorID)
		if err == nil {
			return resolved(row, domain.LimitScopeActor), nil
		}
		if !errors.Is(err, util.ErrNotFound) {
			return domain.ResolvedLimit{}, fmt.Errorf("resolve limit: failed to read limit for %s: %w", actorID, err)
		}
	}

	row, err := s.limitRepo.GetLimit(ctx, q, domain.GlobalLimitID)
	if err == nil {
		return resolved(row, domain.LimitScopeGlobal), nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return domain.ResolvedLimit{}, fmt.Errorf("resolve limit: failed to read global limit: %w", err)
	}

	// No global row yet: seed it. A concurrent seeder may win, so read back
	// whatever row ended up stored.
	seed := &domain.PaymentLimit{
		ID:               domain.GlobalLimitID,
		MaxPaymentAmount: s.seed,
		Currency:         s.defaultCurrency,
		UpdatedAt:        s.clock.Now(),
	}
	if err := s.limitRepo.CreateLimitIfAbsent(ctx, q, seed); err != nil {
		return domain.ResolvedLimit{}, fmt.Errorf("resolve limit: failed to seed global limit: %w", err)
	}
	row, err = s.limitRepo.GetLimit(ctx, q, domain.GlobalLimitID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			s.logger.Warn("No payment limit could be resolved", "actor_id", actorID)
			return domain.ResolvedLimit{Currency: s.defaultCurrency, Scope: domain.LimitScopeUnlimited}, nil
		}
		return domain.ResolvedLimit{}, fmt.Errorf("resolve limit: failed to read seeded global limit: %w", err)
	}
	s.logger.Info("Seeded global payment limit", "max_payment_amount", row.MaxPaymentAmount, "currency", row.Currency)
	return resolved(row, domain.LimitScopeGlobal), nil
}

func resolved(row *domain.PaymentLimit, scope domain.LimitScope) domain.ResolvedLimit {
	return domain.ResolvedLimit{
		MaxPaymentAmount: row.MaxPaymentAmount,
		Currency:         row.Currency,
		Scope:            scope,
	}
}

func (s *paymentLimitService) SetGlobalLimit(ctx context.Context, amount decimal.Decimal, currency, updatedBy string) (*domain.PaymentLimit, error) {
	return s.upsert(ctx, domain.GlobalLimitID, amount, currency, updatedBy)
}

func (s *paymentLimitService) SetActorLimit(ctx context.Context, actorID string, amount decimal.Decimal, currency, updatedBy string) (*domain.PaymentLimit, error) {
	if actorID == "" || actorID == domain.GlobalLimitID {
		return nil, fmt.Errorf("%w: actor id is required", util.ErrInvalidInput)
	}
	return s.upsert(ctx, actorID, amount, currency, updatedBy)
}

func (s *paymentLimitService) upsert(ctx context.Context, id string, amount decimal.Decimal, currency, updatedBy string) (*domain.PaymentLimit, error) {
	if amount.IsNegative() {
		return nil, util.NewInvalidAmount(amount).WithMessage("payment limit %s must not be negative", amount.String())
	}
	if !amount.Equal(amount.Round(amountScale)) || amount.GreaterThan(maxAmount) {
		return nil, util.NewInvalidAmount(amount).WithMessage("payment limit %s must have at most %d decimal places and not exceed %s", amount.String(), amountScale, maxAmount.String())
	}
	if currency == "" {
		currency = s.defaultCurrency
	}
	limit := &domain.PaymentLimit{
		ID:               id,
		MaxPaymentAmount: amount,
		Currency:         currency,
		UpdatedAt:        s.clock.Now(),
	}
	if updatedBy != "" {
		limit.UpdatedBy = &updatedBy
	}
	if err := s.limitRepo.UpsertLimit(ctx, s.dbExecutor, limit); err != nil {
		return nil, fmt.Errorf("set payment limit: %w", err)
	}
	s.invalidate(ctx)
	s.logger.Info("Payment limit updated", "limit_id", id, "max_payment_amount", amount, "currency", currency, "updated_by", updatedBy)
	return limit, nil
}

func (s *paymentLimitService) RemoveActorLimit(ctx context.Context, actorID string) error {
	if actorID == "" || actorID == domain.GlobalLimitID {
		return fmt.Errorf("%w: the global limit cannot be removed", util.ErrInvalidInput)
	}
	if err := s.limitRepo.DeleteLimit(ctx, s.dbExecutor, actorID); err != nil {
		return fmt.Errorf("remove payment limit: %w", err)
	}
	s.invalidate(ctx)
	s.logger.Info("Payment limit removed", "limit_id", actorID)
	return nil
}

func (s *paymentLimitService) ListLimits(ctx context.Context) ([]domain.PaymentLimit, error) {
	limits, err := s.limitRepo.ListLimits(ctx, s.dbExecutor)
	if err != nil {
		return nil, fmt.Errorf("list payment limits: %w", err)
	}
	return limits, nil
}

func (s *paymentLimitService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Error("Payment limit cache invalidation failed", "error", err)
	}
}
