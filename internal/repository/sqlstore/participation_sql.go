// internal/repository/sqlstore/participation_sql.go
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

const participationColumns = `id, user_id, user_type, bet_type, stake_minor, currency, purchase_date, is_winner, win_amount_minor,
	paid, paid_at, paid_by, payment_method, payment_amount_minor, commission_amount_minor, status,
	cancelled_by, cancelled_at, cancellation_fee_minor, created_at, updated_at`

// participationRow is a ticket as stored, with amounts in minor units.
type participationRow struct {
	ID                    string                     `db:"id"`
	UserID                string                     `db:"user_id"`
	UserType              domain.ActorKind           `db:"user_type"`
	BetType               string                     `db:"bet_type"`
	StakeMinor            int64                      `db:"stake_minor"`
	Currency              string                     `db:"currency"`
	PurchaseDate          time.Time                  `db:"purchase_date"`
	IsWinner              bool                       `db:"is_winner"`
	WinAmountMinor        int64                      `db:"win_amount_minor"`
	Paid                  bool                       `db:"paid"`
	PaidAt                *time.Time                 `db:"paid_at"`
	PaidBy                *string                    `db:"paid_by"`
	PaymentMethod         *string                    `db:"payment_method"`
	PaymentAmountMinor    sql.NullInt64              `db:"payment_amount_minor"`
	CommissionAmountMinor sql.NullInt64              `db:"commission_amount_minor"`
	Status                domain.ParticipationStatus `db:"status"`
	CancelledBy           *string                    `db:"cancelled_by"`
	CancelledAt           *time.Time                 `db:"cancelled_at"`
	CancellationFeeMinor  sql.NullInt64              `db:"cancellation_fee_minor"`
	CreatedAt             time.Time                  `db:"created_at"`
	UpdatedAt             time.Time                  `db:"updated_at"`
}

func (p participationRow) toDomain() *domain.Participation {
	return &domain.Participation{
		ID:               p.ID,
		UserID:           p.UserID,
		UserType:         p.UserType,
		BetType:          p.BetType,
		Stake:            fromMinor(p.StakeMinor),
		Currency:         p.Currency,
		PurchaseDate:     p.PurchaseDate,
		IsWinner:         p.IsWinner,
		WinAmount:        fromMinor(p.WinAmountMinor),
		Paid:             p.Paid,
		PaidAt:           p.PaidAt,
		PaidBy:           p.PaidBy,
		PaymentMethod:    p.PaymentMethod,
		PaymentAmount:    fromNullMinor(p.PaymentAmountMinor),
		CommissionAmount: fromNullMinor(p.CommissionAmountMinor),
		Status:           p.Status,
		CancelledBy:      p.CancelledBy,
		CancelledAt:      p.CancelledAt,
		CancellationFee:  fromNullMinor(p.CancellationFeeMinor),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// ParticipationRepository implements repository.ParticipationRepository on
// the lotto_participations table.
type ParticipationRepository struct{}

// NewParticipationRepository creates a new ParticipationRepository.
func NewParticipationRepository() repository.ParticipationRepository {
	return &ParticipationRepository{}
}

// CreateParticipation inserts a ticket, or returns util.ErrDuplicateEntry
// when its id is taken.
func (r *ParticipationRepository) CreateParticipation(ctx context.Context, q repository.DBExecutor, p *domain.Participation) error {
	amounts, err := minors(p.Stake, p.WinAmount)
	if err != nil {
		return err
	}
	var nullable [3]sql.NullInt64
	for i, d := range []decimal.NullDecimal{p.PaymentAmount, p.CommissionAmount, p.CancellationFee} {
		if nullable[i], err = toNullMinor(d); err != nil {
			return err
		}
	}
	query := `INSERT INTO lotto_participations (` + participationColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`
	result, err := q.ExecContext(ctx, q.Rebind(query),
		p.ID, p.UserID, p.UserType, p.BetType, amounts[0], p.Currency, p.PurchaseDate, p.IsWinner, amounts[1],
		p.Paid, p.PaidAt, p.PaidBy, p.PaymentMethod, nullable[0], nullable[1], p.Status,
		p.CancelledBy, p.CancelledAt, nullable[2], p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create participation %s: %w", p.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after creating participation %s: %w", p.ID, err)
	}
	if n == 0 {
		return util.ErrDuplicateEntry
	}
	return nil
}

// GetParticipationByID retrieves a ticket by its id.
func (r *ParticipationRepository) GetParticipationByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Participation, error) {
	var row participationRow
	query := `SELECT ` + participationColumns + ` FROM lotto_participations WHERE id = ?`
	err := q.GetContext(ctx, &row, q.Rebind(query), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get participation %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// MarkPaid records the payout on a winning, unpaid, non-cancelled ticket.
func (r *ParticipationRepository) MarkPaid(ctx context.Context, q repository.DBExecutor, id string, u domain.PayoutUpdate) (bool, error) {
	amounts, err := minors(u.PaymentAmount, u.CommissionAmount)
	if err != nil {
		return false, err
	}
	query := `UPDATE lotto_participations
              SET paid = TRUE, paid_at = ?, paid_by = ?, payment_method = ?, payment_amount_minor = ?,
                  commission_amount_minor = ?, status = ?, updated_at = ?
              WHERE id = ? AND paid = FALSE AND is_winner = TRUE AND status <> ?`
	return r.guardedUpdate(ctx, q, "mark paid", id, query,
		u.PaidAt, u.PaidBy, domain.PaymentMethodCash, amounts[0],
		amounts[1], domain.ParticipationCompleted, u.PaidAt,
		id, domain.ParticipationCancelled)
}

// MarkCancelled cancels an unpaid ticket that is neither completed nor cancelled.
func (r *ParticipationRepository) MarkCancelled(ctx context.Context, q repository.DBExecutor, id string, u domain.CancellationUpdate) (bool, error) {
	fee, err := toMinor(u.Fee)
	if err != nil {
		return false, err
	}
	query := `UPDATE lotto_participations
              SET status = ?, cancelled_by = ?, cancelled_at = ?, cancellation_fee_minor = ?, updated_at = ?
              WHERE id = ? AND paid = FALSE AND status NOT IN (?, ?)`
	return r.guardedUpdate(ctx, q, "mark cancelled", id, query,
		domain.ParticipationCancelled, u.CancelledBy, u.CancelledAt, fee, u.CancelledAt,
		id, domain.ParticipationCompleted, domain.ParticipationCancelled)
}

// RecordDrawResult completes an active ticket with the draw outcome.
func (r *ParticipationRepository) RecordDrawResult(ctx context.Context, q repository.DBExecutor, id string, isWinner bool, winAmount decimal.Decimal, at time.Time) (bool, error) {
	win, err := toMinor(winAmount)
	if err != nil {
		return false, err
	}
	query := `UPDATE lotto_participations
              SET is_winner = ?, win_amount_minor = ?, status = ?, updated_at = ?
              WHERE id = ? AND paid = FALSE AND status = ?`
	return r.guardedUpdate(ctx, q, "record draw result", id, query,
		isWinner, win, domain.ParticipationCompleted, at,
		id, domain.ParticipationActive)
}

func (r *ParticipationRepository) guardedUpdate(ctx context.Context, q repository.DBExecutor, op, id, query string, args ...interface{}) (bool, error) {
	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s participation %s: %w", op, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after %s participation %s: %w", op, id, err)
	}
	return n > 0, nil
}
