// internal/repository/sqlstore/payment_limit_sql.go
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

const limitColumns = `id, max_payment_minor, currency, updated_at, updated_by`

// paymentLimitRow is a limit as stored, with the amount in minor units.
type paymentLimitRow struct {
	ID              string    `db:"id"`
	MaxPaymentMinor int64     `db:"max_payment_minor"`
	Currency        string    `db:"currency"`
	UpdatedAt       time.Time `db:"updated_at"`
	UpdatedBy       *string   `db:"updated_by"`
}

func (l paymentLimitRow) toDomain() domain.PaymentLimit {
	return domain.PaymentLimit{
		ID:               l.ID,
		MaxPaymentAmount: fromMinor(l.MaxPaymentMinor),
		Currency:         l.Currency,
		UpdatedAt:        l.UpdatedAt,
		UpdatedBy:        l.UpdatedBy,
	}
}

// PaymentLimitRepository implements repository.PaymentLimitRepository.
type PaymentLimitRepository struct{}

// NewPaymentLimitRepository creates a new PaymentLimitRepository.
func NewPaymentLimitRepository() repository.PaymentLimitRepository {
	return &PaymentLimitRepository{}
}

// GetLimit retrieves the limit row with the given id.
func (r *PaymentLimitRepository) GetLimit(ctx context.Context, q repository.DBExecutor, id string) (*domain.PaymentLimit, error) {
	var row paymentLimitRow
	query := `SELECT ` + limitColumns + ` FROM payment_limits WHERE id = ?`
	err := q.GetContext(ctx, &row, q.Rebind(query), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment limit %s: %w", id, err)
	}
	limit := row.toDomain()
	return &limit, nil
}

// CreateLimitIfAbsent inserts limit unless a row already exists.
func (r *PaymentLimitRepository) CreateLimitIfAbsent(ctx context.Context, q repository.DBExecutor, limit *domain.PaymentLimit) error {
	amount, err := toMinor(limit.MaxPaymentAmount)
	if err != nil {
		return err
	}
	query := `INSERT INTO payment_limits (` + limitColumns + `)
              VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`
	_, err = q.ExecContext(ctx, q.Rebind(query),
		limit.ID, amount, limit.Currency, limit.UpdatedAt, limit.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to create payment limit %s: %w", limit.ID, err)
	}
	return nil
}

// UpsertLimit inserts or replaces a limit row.
func (r *PaymentLimitRepository) UpsertLimit(ctx context.Context, q repository.DBExecutor, limit *domain.PaymentLimit) error {
	amount, err := toMinor(limit.MaxPaymentAmount)
	if err != nil {
		return err
	}
	query := `INSERT INTO payment_limits (` + limitColumns + `)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT (id) DO UPDATE SET
                  max_payment_minor = excluded.max_payment_minor,
                  currency = excluded.currency,
                  updated_at = excluded.updated_at,
                  updated_by = excluded.updated_by`
	_, err = q.ExecContext(ctx, q.Rebind(query),
		limit.ID, amount, limit.Currency, limit.UpdatedAt, limit.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to upsert payment limit %s: %w", limit.ID, err)
	}
	return nil
}

// DeleteLimit removes a limit row.
func (r *PaymentLimitRepository) DeleteLimit(ctx context.Context, q repository.DBExecutor, id string) error {
	result, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM payment_limits WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete payment limit %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after deleting payment limit %s: %w", id, err)
	}
	if n == 0 {
		return util.ErrNotFound
	}
	return nil
}

// ListLimits returns every limit row, global first.
func (r *PaymentLimitRepository) ListLimits(ctx context.Context, q repository.DBExecutor) ([]domain.PaymentLimit, error) {
	rows := []paymentLimitRow{}
	query := `SELECT ` + limitColumns + ` FROM payment_limits
              ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END, id`
	if err := q.SelectContext(ctx, &rows, q.Rebind(query), domain.GlobalLimitID); err != nil {
		return nil, fmt.Errorf("failed to list payment limits: %w", err)
	}
	limits := make([]domain.PaymentLimit, len(rows))
	for i := range rows {
		limits[i] = rows[i].toDomain()
	}
	return limits, nil
}
