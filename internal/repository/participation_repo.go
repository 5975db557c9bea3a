// internal/repository/participation_repo.go
package repository

import (
	"context"
	"time"

	"lotto-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// ParticipationRepository defines the ticket operations the ledger needs.
// The Mark* methods are guarded: they report false when the ticket was no
// longer in a state that allows the transition.
type ParticipationRepository interface {
	CreateParticipation(ctx context.Context, q DBExecutor, p *domain.Participation) error
	// GetParticipationByID returns util.ErrNotFound if absent.
	GetParticipationByID(ctx context.Context, q DBExecutor, id string) (*domain.Participation, error)
	MarkPaid(ctx context.Context, q DBExecutor, id string, update domain.PayoutUpdate) (bool, error)
	MarkCancelled(ctx context.Context, q DBExecutor, id string, update domain.CancellationUpdate) (bool, error)
	RecordDrawResult(ctx context.Context, q DBExecutor, id string, isWinner bool, winAmount decimal.Decimal, at time.Time) (bool, error)
}
