// internal/domain/commission.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetTypeSimple is the bet type used for commission on ticket sales.
const BetTypeSimple = "simple"

var hundred = decimal.NewFromInt(100)

// CommissionRate is the configured percentage for one bet type.
type CommissionRate struct {
	BetType    string          `db:"bet_type" json:"bet_type"`
	Percentage decimal.Decimal `db:"percentage" json:"percentage"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// ValidPercentage reports whether p is within [0, 100].
func ValidPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// CommissionOn returns base * percentage / 100.
func CommissionOn(base, percentage decimal.Decimal) decimal.Decimal {
	return base.Mul(percentage).Div(hundred)
}
