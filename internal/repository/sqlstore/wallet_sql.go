// internal/repository/sqlstore/wallet_sql.go
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

	"github.com/shopspring/decimal"
)

// walletRow is a wallet as stored, with amounts in minor units.
type walletRow struct {
	ID             string        `db:"id"`
	UserID         string        `db:"user_id"`
	UserEmail      string        `db:"user_email"`
	BalanceMinor   int64         `db:"balance_minor"`
	Currency       string        `db:"currency"`
	UnitValueMinor sql.NullInt64 `db:"unit_value_minor"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

func (w walletRow) toDomain() *domain.Wallet {
	return &domain.Wallet{
		ID:        w.ID,
		UserID:    w.UserID,
		UserEmail: w.UserEmail,
		Balance:   fromMinor(w.BalanceMinor),
		Currency:  w.Currency,
		UnitValue: fromNullMinor(w.UnitValueMinor),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

// WalletRepository implements repository.WalletRepository for one wallet table.
type WalletRepository struct {
	table string
}

// NewWalletRepository creates a WalletRepository bound to table.
func NewWalletRepository(table string) repository.WalletRepository {
	return &WalletRepository{table: table}
}

// CreateWalletIfAbsent inserts the wallet unless its id is already taken.
func (r *WalletRepository) CreateWalletIfAbsent(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) (bool, error) {
	balance, err := toMinor(wallet.Balance)
	if err != nil {
		return false, err
	}
	unitValue, err := toNullMinor(wallet.UnitValue)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, user_email, balance_minor, currency, unit_value_minor, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`, r.table)
	result, err := q.ExecContext(ctx, q.Rebind(query),
		wallet.ID, wallet.UserID, wallet.UserEmail, balance, wallet.Currency, unitValue,
		wallet.CreatedAt, wallet.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create wallet %s in %s: %w", wallet.ID, r.table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after creating wallet %s: %w", wallet.ID, err)
	}
	return n > 0, nil
}

// GetWalletByID retrieves a wallet by its id using the provided DBExecutor.
func (r *WalletRepository) GetWalletByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Wallet, error) {
	var row walletRow
	query := fmt.Sprintf(`SELECT id, user_id, user_email, balance_minor, currency, unit_value_minor, created_at, updated_at
              FROM %s WHERE id = ?`, r.table)
	err := q.GetContext(ctx, &row, q.Rebind(query), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet %s from %s: %w", id, r.table, err)
	}
	return row.toDomain(), nil
}

// CreditBalance adds amount to the balance of wallet id.
func (r *WalletRepository) CreditBalance(ctx context.Context, q repository.DBExecutor, id string, amount decimal.Decimal, at time.Time) error {
	m, err := toMinor(amount)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET balance_minor = balance_minor + ?, updated_at = ? WHERE id = ?`, r.table)
	result, err := q.ExecContext(ctx, q.Rebind(query), m, at, id)
	if err != nil {
		return fmt.Errorf("failed to credit wallet %s in %s: %w", id, r.table, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after crediting wallet %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}

// DebitBalance subtracts amount from wallet id only while the balance covers it.
func (r *WalletRepository) DebitBalance(ctx context.Context, q repository.DBExecutor, id string, amount decimal.Decimal, at time.Time) (bool, error) {
	m, err := toMinor(amount)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`UPDATE %s SET balance_minor = balance_minor - ?, updated_at = ? WHERE id = ? AND balance_minor >= ?`, r.table)
	result, err := q.ExecContext(ctx, q.Rebind(query), m, at, id, m)
	if err != nil {
		return false, fmt.Errorf("failed to debit wallet %s in %s: %w", id, r.table, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after debiting wallet %s: %w", id, err)
	}
	return rowsAffected > 0, nil
}
