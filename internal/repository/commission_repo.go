// internal/repository/commission_repo.go
package repository

import (
	"context"

	"lotto-ledger/internal/domain"
)

// CommissionRepository reads and writes per-bet-type commission percentages.
type CommissionRepository interface {
	// GetRate returns util.ErrNotFound if the bet type has no configured rate.
	GetRate(ctx context.Context, q DBExecutor, betType string) (*domain.CommissionRate, error)
	UpsertRate(ctx context.Context, q DBExecutor, rate *domain.CommissionRate) error
}
