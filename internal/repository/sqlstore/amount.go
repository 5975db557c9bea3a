// internal/repository/sqlstore/amount.go
package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"lotto-ledger/internal/util"
)

// Amounts are stored as BIGINT counts of 1/10^amountScale units in *_minor
// columns, so balance arithmetic stays exact on every driver.
const amountScale = 4

var (
	maxMinor = decimal.NewFromInt(1<<63 - 1)
	minMinor = decimal.NewFromInt(-1 << 63)
)

// toMinor converts d to minor units. Amounts finer than the stored scale or
// outside the BIGINT range are rejected, never rounded.
func toMinor(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(amountScale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s has more than %d decimal places", util.ErrInvalidInput, d.String(), amountScale)
	}
	if shifted.GreaterThan(maxMinor) || shifted.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: amount %s is out of range", util.ErrInvalidInput, d.String())
	}
	return shifted.IntPart(), nil
}

func toNullMinor(d decimal.NullDecimal) (sql.NullInt64, error) {
	if !d.Valid {
		return sql.NullInt64{}, nil
	}
	m, err := toMinor(d.Decimal)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: m, Valid: true}, nil
}

func fromMinor(m int64) decimal.Decimal {
	return decimal.New(m, -amountScale)
}

func fromNullMinor(m sql.NullInt64) decimal.NullDecimal {
	if !m.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(fromMinor(m.Int64))
}

// minors converts several amounts at once, stopping at the first failure.
func minors(amounts ...decimal.Decimal) ([]int64, error) {
	out := make([]int64, len(amounts))
	for i, a := range amounts {
		m, err := toMinor(a)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}
