// internal/domain/payment_limit.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GlobalLimitID is the id of the default limit row.
const GlobalLimitID = "global"

// LimitScope tells where a resolved limit came from.
type LimitScope string

const (
	LimitScopeActor     LimitScope = "actor"
	LimitScopeGlobal    LimitScope = "global"
	LimitScopeUnlimited LimitScope = "unlimited"
)

// PaymentLimit is a stored limit row, either global or per actor.
type PaymentLimit struct {
	ID               string          `db:"id" json:"id"`
	MaxPaymentAmount decimal.Decimal `db:"max_payment_amount" json:"max_payment_amount"`
	Currency         string          `db:"currency" json:"currency"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
	UpdatedBy        *string         `db:"updated_by" json:"updated_by,omitempty"`
}

// ResolvedLimit is the answer of the payment limit oracle.
type ResolvedLimit struct {
	MaxPaymentAmount decimal.Decimal `json:"max_payment_amount"`
	Currency         string          `json:"currency"`
	Scope            LimitScope      `json:"scope"`
}

// Unlimited reports the sentinel returned when no limit could be resolved.
// Callers must reject payouts against it.
func (r ResolvedLimit) Unlimited() bool {
	return r.Scope == LimitScopeUnlimited
}

// Allows reports whether amount fits within the limit.
func (r ResolvedLimit) Allows(amount decimal.Decimal) bool {
	if r.Unlimited() {
		return false
	}
	return amount.LessThanOrEqual(r.MaxPaymentAmount)
}
