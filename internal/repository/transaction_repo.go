// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"lotto-ledger/internal/domain"
)

// TransactionRepository defines the interface for ledger record operations.
type TransactionRepository interface {
	// CreateTransaction appends a ledger record.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetTransactionsByWalletID retrieves a page of records and the total count for a wallet.
	GetTransactionsByWalletID(ctx context.Context, q DBExecutor, walletID string, limit, offset int) ([]domain.Transaction, int64, error)
}
