// internal/repository/payment_limit_repo.go
package repository

import (
	"context"

	"lotto-ledger/internal/domain"
)

// PaymentLimitRepository defines the interface for payment limit rows.
type PaymentLimitRepository interface {
	// GetLimit returns util.ErrNotFound if no row exists for id.
	GetLimit(ctx context.Context, q DBExecutor, id string) (*domain.PaymentLimit, error)
	// CreateLimitIfAbsent inserts limit unless a row with the same id exists.
	CreateLimitIfAbsent(ctx context.Context, q DBExecutor, limit *domain.PaymentLimit) error
	// UpsertLimit inserts or replaces the row.
	UpsertLimit(ctx context.Context, q DBExecutor, limit *domain.PaymentLimit) error
	// DeleteLimit removes a row; returns util.ErrNotFound if absent.
	DeleteLimit(ctx context.Context, q DBExecutor, id string) error
	ListLimits(ctx context.Context, q DBExecutor) ([]domain.PaymentLimit, error)
}
