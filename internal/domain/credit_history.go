// internal/domain/credit_history.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditHistoryEntry is an immutable audit record of an admin credit.
type CreditHistoryEntry struct {
	ID            string          `db:"id" json:"id"`
	AdminID       string          `db:"admin_id" json:"admin_id"`
	AdminEmail    *string         `db:"admin_email" json:"admin_email,omitempty"`
	RecipientID   string          `db:"recipient_id" json:"recipient_id"`
	RecipientType ActorKind       `db:"recipient_type" json:"recipient_type"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// AdminRef identifies the administrator behind a credit.
type AdminRef struct {
	ID    string
	Email string
}

// NewCreditHistoryEntry builds an entry for a credit made by admin.
func NewCreditHistoryEntry(admin AdminRef, recipient *Wallet, kind ActorKind, amount decimal.Decimal, now time.Time) *CreditHistoryEntry {
	var email *string
	if admin.Email != "" {
		e := admin.Email
		email = &e
	}
	return &CreditHistoryEntry{
		ID:            uuid.NewString(),
		AdminID:       admin.ID,
		AdminEmail:    email,
		RecipientID:   recipient.ID,
		RecipientType: kind,
		Amount:        amount,
		Currency:      recipient.Currency,
		CreatedAt:     now,
	}
}
