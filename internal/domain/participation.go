// internal/domain/participation.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParticipationStatus is the lifecycle state of a lottery ticket.
type ParticipationStatus string

const (
	ParticipationActive    ParticipationStatus = "active"
	ParticipationCompleted ParticipationStatus = "completed"
	ParticipationCancelled ParticipationStatus = "cancelled"
)

// PaymentMethodCash is the only payout method handled at the counter.
const PaymentMethodCash = "cash"

// Participation is a lottery ticket sold by an agent or staff member.
type Participation struct {
	ID               string              `db:"id" json:"id"`
	UserID           string              `db:"user_id" json:"user_id"` // purchaser
	UserType         ActorKind           `db:"user_type" json:"user_type"`
	BetType          string              `db:"bet_type" json:"bet_type"`
	Stake            decimal.Decimal     `db:"stake" json:"stake"`
	Currency         string              `db:"currency" json:"currency"`
	PurchaseDate     time.Time           `db:"purchase_date" json:"purchase_date"`
	IsWinner         bool                `db:"is_winner" json:"is_winner"`
	WinAmount        decimal.Decimal     `db:"win_amount" json:"win_amount"`
	Paid             bool                `db:"paid" json:"paid"`
	PaidAt           *time.Time          `db:"paid_at" json:"paid_at,omitempty"`
	PaidBy           *string             `db:"paid_by" json:"paid_by,omitempty"`
	PaymentMethod    *string             `db:"payment_method" json:"payment_method,omitempty"`
	PaymentAmount    decimal.NullDecimal `db:"payment_amount" json:"payment_amount"`
	CommissionAmount decimal.NullDecimal `db:"commission_amount" json:"commission_amount"`
	Status           ParticipationStatus `db:"status" json:"status"`
	CancelledBy      *string             `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt      *time.Time          `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationFee  decimal.NullDecimal `db:"cancellation_fee" json:"cancellation_fee"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}

// TicketSale is a ticket reported by the point of sale.
type TicketSale struct {
	ID      string
	BetType string
	Stake   decimal.Decimal
}

// NewParticipation creates an active ticket purchased by actorID.
func NewParticipation(sale TicketSale, actorID string, kind ActorKind, currency string, now time.Time) *Participation {
	betType := sale.BetType
	if betType == "" {
		betType = BetTypeSimple
	}
	return &Participation{
		ID:           sale.ID,
		UserID:       actorID,
		UserType:     kind,
		BetType:      betType,
		Stake:        sale.Stake,
		Currency:     currency,
		PurchaseDate: now,
		WinAmount:    decimal.Zero,
		Status:       ParticipationActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsFinal reports whether the ticket can no longer be cancelled.
func (p *Participation) IsFinal() bool {
	return p.Status == ParticipationCompleted || p.Status == ParticipationCancelled
}

// PayoutUpdate is the set of fields written when a ticket is paid.
type PayoutUpdate struct {
	PaidAt           time.Time
	PaidBy           string
	PaymentAmount    decimal.Decimal
	CommissionAmount decimal.Decimal
}

// CancellationUpdate is the set of fields written when a ticket is cancelled.
type CancellationUpdate struct {
	CancelledBy string
	CancelledAt time.Time
	Fee         decimal.Decimal
}
