// internal/service/credit_history_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/util"
)

// CreditHistoryService is the append-only audit log of admin credits.
type CreditHistoryService interface {
	Record(ctx context.Context, entry *domain.CreditHistoryEntry) (string, error)
	List(ctx context.Context, recipientID string, limit, offset int) ([]domain.CreditHistoryEntry, int64, error)
}

type creditHistoryService struct {
	dbExecutor repository.DBExecutor
	repo       repository.CreditHistoryRepository
	clock      util.Clock
	logger     *slog.Logger
}

// NewCreditHistoryService creates a new CreditHistoryService.
func NewCreditHistoryService(
	dbExecutor repository.DBExecutor,
	repo repository.CreditHistoryRepository,
	clock util.Clock,
	logger *slog.Logger,
) CreditHistoryService {
	return &creditHistoryService{
		dbExecutor: dbExecutor,
		repo:       repo,
		clock:      clock,
		logger:     logger,
	}
}

// Record appends entry and returns its id. ID and CreatedAt are filled in
// when empty.
func (s *creditHistoryService) Record(ctx context.Context, entry *domain.CreditHistoryEntry) (string, error) {
	if entry == nil || entry.AdminID == "" || entry.RecipientID == "" {
		return "", fmt.Errorf("%w: admin and recipient are required", util.ErrInvalidInput)
	}
	if _, ok := domain.ParseActorKind(string(entry.RecipientType)); !ok {
		return "", fmt.Errorf("%w: unknown recipient type %q", util.ErrInvalidInput, entry.RecipientType)
	}
	if err := validateAmount(entry.Amount); err != nil {
		return "", err
	}
	if entry.Currency == "" {
		return "", fmt.Errorf("%w: currency is required", util.ErrInvalidInput)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}

	if err := s.repo.CreateEntry(ctx, s.dbExecutor, entry); err != nil {
		return "", fmt.Errorf("record credit history: %w", err)
	}
	s.logger.Info("Credit history recorded", "entry_id", entry.ID, "admin_id", entry.AdminID, "recipient_id", entry.RecipientID, "amount", entry.Amount)
	return entry.ID, nil
}

// List returns entries newest first. An empty recipientID lists all entries.
func (s *creditHistoryService) List(ctx context.Context, recipientID string, limit, offset int) ([]domain.CreditHistoryEntry, int64, error) {
	entries, total, err := s.repo.ListEntries(ctx, s.dbExecutor, recipientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list credit history: %w", err)
	}
	return entries, total, nil
}
