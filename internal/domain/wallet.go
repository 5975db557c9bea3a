// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// WalletType distinguishes the spendable wallet from the commission wallet.
type WalletType string

const (
	WalletTypeMain       WalletType = "main"
	WalletTypeCommission WalletType = "commission"
)

// Wallet represents one balance held by an actor. Each actor owns exactly one
// main and one commission wallet; both are keyed by the actor id.
type Wallet struct {
	ID        string              `db:"id" json:"id"`
	UserID    string              `db:"user_id" json:"user_id"`
	UserEmail string              `db:"user_email" json:"user_email"`
	Balance   decimal.Decimal     `db:"balance" json:"balance"`       // BIGINT 1/10^4 units in DB
	Currency  string              `db:"currency" json:"currency"`     // fixed at creation, e.g. "XAF"
	UnitValue decimal.NullDecimal `db:"unit_value" json:"unit_value"` // agent main wallet only, display multiplier
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}

// NewWallet creates a new zero-balance Wallet for an actor.
func NewWallet(actorID, email, currency string, now time.Time) *Wallet {
	return &Wallet{
		ID:        actorID,
		UserID:    actorID,
		UserEmail: email,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WalletPair is the main and commission wallet of one actor.
type WalletPair struct {
	Main       *Wallet `json:"main"`
	Commission *Wallet `json:"commission"`
}

// Total is the combined value held across both wallets.
func (p WalletPair) Total() decimal.Decimal {
	total := decimal.Zero
	if p.Main != nil {
		total = total.Add(p.Main.Balance)
	}
	if p.Commission != nil {
		total = total.Add(p.Commission.Balance)
	}
	return total
}
