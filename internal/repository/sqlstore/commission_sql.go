// internal/repository/sqlstore/commission_sql.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/util"
)

// CommissionRepository implements repository.CommissionRepository for one
// commission table (agent_commissions or staff_commissions).
type CommissionRepository struct {
	table string
}

// NewCommissionRepository creates a CommissionRepository bound to table.
func NewCommissionRepository(table string) repository.CommissionRepository {
	return &CommissionRepository{table: table}
}

// GetRate retrieves the percentage configured for betType.
func (r *CommissionRepository) GetRate(ctx context.Context, q repository.DBExecutor, betType string) (*domain.CommissionRate, error) {
	var row struct {
		BetType         string    `db:"bet_type"`
		PercentageMinor int64     `db:"percentage_minor"`
		UpdatedAt       time.Time `db:"updated_at"`
	}
	query := fmt.Sprintf(`SELECT bet_type, percentage_minor, updated_at FROM %s WHERE bet_type = ?`, r.table)
	err := q.GetContext(ctx, &row, q.Rebind(query), betType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get commission rate %s from %s: %w", betType, r.table, err)
	}
	return &domain.CommissionRate{
		BetType:    row.BetType,
		Percentage: fromMinor(row.PercentageMinor),
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

// UpsertRate inserts or replaces the percentage for a bet type.
func (r *CommissionRepository) UpsertRate(ctx context.Context, q repository.DBExecutor, rate *domain.CommissionRate) error {
	percentage, err := toMinor(rate.Percentage)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (bet_type, percentage_minor, updated_at) VALUES (?, ?, ?)
              ON CONFLICT (bet_type) DO UPDATE SET percentage_minor = excluded.percentage_minor, updated_at = excluded.updated_at`, r.table)
	if _, err := q.ExecContext(ctx, q.Rebind(query), rate.BetType, percentage, rate.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert commission rate %s in %s: %w", rate.BetType, r.table, err)
	}
	return nil
}
