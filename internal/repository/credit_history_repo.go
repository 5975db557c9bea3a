// internal/repository/credit_history_repo.go
package repository

import (
	"context"

	"lotto-ledger/internal/domain"
)

// CreditHistoryRepository is the append-only store of admin credits.
type CreditHistoryRepository interface {
	CreateEntry(ctx context.Context, q DBExecutor, entry *domain.CreditHistoryEntry) error
	// ListEntries returns a page of entries, newest first, optionally filtered by recipient.
	ListEntries(ctx context.Context, q DBExecutor, recipientID string, limit, offset int) ([]domain.CreditHistoryEntry, int64, error)
}
