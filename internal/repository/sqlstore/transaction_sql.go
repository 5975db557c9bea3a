// internal/repository/sqlstore/transaction_sql.go
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
)

// transactionRow is a ledger record as stored, with the amount in minor units.
type transactionRow struct {
	ID            string                   `db:"id"`
	WalletID      string                   `db:"wallet_id"`
	WalletType    domain.WalletType        `db:"wallet_type"`
	Type          domain.TransactionType   `db:"type"`
	AmountMinor   int64                    `db:"amount_minor"`
	Currency      string                   `db:"currency"`
	ReferenceType domain.ReferenceType     `db:"reference_type"`
	ReferenceID   *string                  `db:"reference_id"`
	Status        domain.TransactionStatus `db:"status"`
	Reason        *string                  `db:"reason"`
	CreatedAt     time.Time                `db:"created_at"`
	UpdatedAt     time.Time                `db:"updated_at"`
}

func (t transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:            t.ID,
		WalletID:      t.WalletID,
		WalletType:    t.WalletType,
		Type:          t.Type,
		Amount:        fromMinor(t.AmountMinor),
		Currency:      t.Currency,
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		Status:        t.Status,
		Reason:        t.Reason,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// TransactionRepository implements repository.TransactionRepository for one
// ledger table (agent_transactions or staff_transactions).
type TransactionRepository struct {
	table string
}

// NewTransactionRepository creates a TransactionRepository bound to table.
func NewTransactionRepository(table string) repository.TransactionRepository {
	return &TransactionRepository{table: table}
}

// CreateTransaction inserts a new ledger record using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	amount, err := toMinor(transaction.Amount)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, wallet_id, wallet_type, type, amount_minor, currency, reference_type, reference_id, status, reason, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.table)
	_, err = q.ExecContext(ctx, q.Rebind(query),
		transaction.ID,
		transaction.WalletID,
		transaction.WalletType,
		transaction.Type,
		amount,
		transaction.Currency,
		transaction.ReferenceType,
		transaction.ReferenceID,
		transaction.Status,
		transaction.Reason,
		transaction.CreatedAt,
		transaction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionsByWalletID retrieves a paginated list of records for a wallet.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) GetTransactionsByWalletID(ctx context.Context, q repository.DBExecutor, walletID string, limit, offset int) ([]domain.Transaction, int64, error) {
	rows := []transactionRow{}

	query := fmt.Sprintf(`
		SELECT id, wallet_id, wallet_type, type, amount_minor, currency, reference_type, reference_id, status, reason, created_at, updated_at
		FROM %s
		WHERE wallet_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, r.table)
	err := q.SelectContext(ctx, &rows, q.Rebind(query), walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for wallet %s: %w", walletID, err)
	}

	var totalCount int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE wallet_id = ?`, r.table)
	err = q.GetContext(ctx, &totalCount, q.Rebind(countQuery), walletID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for wallet %s: %w", walletID, err)
	}

	transactions := make([]domain.Transaction, len(rows))
	for i := range rows {
		transactions[i] = rows[i].toDomain()
	}
	return transactions, totalCount, nil
}
