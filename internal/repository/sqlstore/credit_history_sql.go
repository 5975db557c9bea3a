// internal/repository/sqlstore/credit_history_sql.go
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
)

const creditHistoryColumns = `id, admin_id, admin_email, recipient_id, recipient_type, amount_minor, currency, created_at`

// creditHistoryRow is an entry as stored, with the amount in minor units.
type creditHistoryRow struct {
	ID            string           `db:"id"`
	AdminID       string           `db:"admin_id"`
	AdminEmail    *string          `db:"admin_email"`
	RecipientID   string           `db:"recipient_id"`
	RecipientType domain.ActorKind `db:"recipient_type"`
	AmountMinor   int64            `db:"amount_minor"`
	Currency      string           `db:"currency"`
	CreatedAt     time.Time        `db:"created_at"`
}

// CreditHistoryRepository implements repository.CreditHistoryRepository on
// wallet_credit_history. Entries are never updated or deleted.
type CreditHistoryRepository struct{}

// NewCreditHistoryRepository creates a new CreditHistoryRepository.
func NewCreditHistoryRepository() repository.CreditHistoryRepository {
	return &CreditHistoryRepository{}
}

// CreateEntry appends an entry.
func (r *CreditHistoryRepository) CreateEntry(ctx context.Context, q repository.DBExecutor, e *domain.CreditHistoryEntry) error {
	amount, err := toMinor(e.Amount)
	if err != nil {
		return err
	}
	query := `INSERT INTO wallet_credit_history (` + creditHistoryColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.ExecContext(ctx, q.Rebind(query),
		e.ID, e.AdminID, e.AdminEmail, e.RecipientID, e.RecipientType, amount, e.Currency, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create credit history entry: %w", err)
	}
	return nil
}

// ListEntries returns a page of entries and the total count.
func (r *CreditHistoryRepository) ListEntries(ctx context.Context, q repository.DBExecutor, recipientID string, limit, offset int) ([]domain.CreditHistoryEntry, int64, error) {
	rows := []creditHistoryRow{}
	where := ""
	args := []interface{}{}
	if recipientID != "" {
		where = "WHERE recipient_id = ?"
		args = append(args, recipientID)
	}

	query := `SELECT ` + creditHistoryColumns + `
              FROM wallet_credit_history ` + where + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	if err := q.SelectContext(ctx, &rows, q.Rebind(query), append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list credit history: %w", err)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM wallet_credit_history ` + where
	if err := q.GetContext(ctx, &total, q.Rebind(countQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count credit history: %w", err)
	}
	entries := make([]domain.CreditHistoryEntry, len(rows))
	for i, row := range rows {
		entries[i] = domain.CreditHistoryEntry{
			ID:            row.ID,
			AdminID:       row.AdminID,
			AdminEmail:    row.AdminEmail,
			RecipientID:   row.RecipientID,
			RecipientType: row.RecipientType,
			Amount:        fromMinor(row.AmountMinor),
			Currency:      row.Currency,
			CreatedAt:     row.CreatedAt,
		}
	}
	return entries, total, nil
}
