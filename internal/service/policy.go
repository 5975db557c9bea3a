// internal/service/policy.go
package service

import (
	"github.com/shopspring/decimal"

	"lotto-ledger/internal/config"
	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/repository/sqlstore"
)

// staffPayoutCommissionPercent is not configurable.
var staffPayoutCommissionPercent = decimal.NewFromInt(1)

// KindPolicy holds the money rules that differ between actor kinds.
type KindPolicy struct {
	Kind                        domain.ActorKind
	PayoutCommissionPercent     decimal.Decimal
	DefaultBetCommissionPercent decimal.Decimal
	UnitValue                   decimal.NullDecimal // stamped on new main wallets

	SupportsBetDeduction   bool
	EnforcePaymentLimit    bool
	CheckPaymentPermission bool
	// RequirePayoutFloat rejects a payout the main balance could not cover,
	// although the payout credits rather than debits that balance.
	RequirePayoutFloat bool
}

// AgentPolicy returns the agent rules: bet deduction, payment limits and a
// float check on payouts.
func AgentPolicy(cfg config.LedgerConfig) KindPolicy {
	return KindPolicy{
		Kind:                        domain.ActorKindAgent,
		PayoutCommissionPercent:     cfg.AgentPayoutCommissionPercent,
		DefaultBetCommissionPercent: cfg.AgentDefaultBetCommissionPercent,
		UnitValue:                   decimal.NewNullDecimal(cfg.AgentUnitValue),
		SupportsBetDeduction:        true,
		EnforcePaymentLimit:         true,
		RequirePayoutFloat:          true,
	}
}

// StaffPolicy returns the staff rules: payouts gated by the profile flag only,
// with a fixed 1% payout commission.
func StaffPolicy(cfg config.LedgerConfig) KindPolicy {
	return KindPolicy{
		Kind:                        domain.ActorKindStaff,
		PayoutCommissionPercent:     staffPayoutCommissionPercent,
		DefaultBetCommissionPercent: cfg.StaffDefaultBetCommissionPercent,
		CheckPaymentPermission:      true,
	}
}

// KindStore is the set of tables owned by one actor kind.
type KindStore struct {
	MainWallets       repository.WalletRepository
	CommissionWallets repository.WalletRepository
	Transactions      repository.TransactionRepository
	Commissions       repository.CommissionRepository
}

// NewSQLKindStore binds the repositories to the <kind>_* tables.
func NewSQLKindStore(kind domain.ActorKind) KindStore {
	prefix := string(kind)
	return KindStore{
		MainWallets:       sqlstore.NewWalletRepository(prefix + "_wallets"),
		CommissionWallets: sqlstore.NewWalletRepository(prefix + "_commission_wallets"),
		Transactions:      sqlstore.NewTransactionRepository(prefix + "_transactions"),
		Commissions:       sqlstore.NewCommissionRepository(prefix + "_commissions"),
	}
}

// KindBinding pairs a policy with its tables.
type KindBinding struct {
	Policy KindPolicy
	Store  KindStore
}

// CancellationFeePolicy decides what a purchaser pays to cancel a ticket.
type CancellationFeePolicy interface {
	Fee(ticket *domain.Participation) decimal.Decimal
}

// NoCancellationFee lets tickets be cancelled for free.
type NoCancellationFee struct{}

func (NoCancellationFee) Fee(*domain.Participation) decimal.Decimal {
	return decimal.Zero
}

// PercentageCancellationFee charges a percentage of the ticket stake.
type PercentageCancellationFee struct {
	Percent decimal.Decimal
}

func (p PercentageCancellationFee) Fee(ticket *domain.Participation) decimal.Decimal {
	return domain.CommissionOn(ticket.Stake, p.Percent).Round(amountScale)
}

// NewCancellationFeePolicy picks the policy for a configured percentage.
func NewCancellationFeePolicy(percent decimal.Decimal) CancellationFeePolicy {
	if percent.IsPositive() {
		return PercentageCancellationFee{Percent: percent}
	}
	return NoCancellationFee{}
}
