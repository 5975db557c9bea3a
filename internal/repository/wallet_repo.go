// internal/repository/wallet_repo.go
package repository

import (
	"context"
	"time"

	"lotto-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// WalletRepository defines the data operations on one wallet table.
type WalletRepository interface {
	// CreateWalletIfAbsent inserts the wallet unless one with the same id exists.
	// It reports whether a row was inserted.
	CreateWalletIfAbsent(ctx context.Context, q DBExecutor, wallet *domain.Wallet) (bool, error)
	// GetWalletByID retrieves a wallet by its id. Returns util.ErrNotFound if absent.
	GetWalletByID(ctx context.Context, q DBExecutor, id string) (*domain.Wallet, error)
	// CreditBalance adds amount to the balance.
	CreditBalance(ctx context.Context, q DBExecutor, id string, amount decimal.Decimal, at time.Time) error
	// DebitBalance subtracts amount only if the balance covers it.
	// It reports false when the guard rejected the update.
	DebitBalance(ctx context.Context, q DBExecutor, id string, amount decimal.Decimal, at time.Time) (bool, error)
}
