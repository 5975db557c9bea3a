// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// TransactionType defines the direction of a ledger record.
type TransactionType string

const (
	TransactionTypeCredit     TransactionType = "credit"
	TransactionTypeDebit      TransactionType = "debit"
	TransactionTypeCommission TransactionType = "commission"
)

// ReferenceType names the business event behind a ledger record.
type ReferenceType string

const (
	ReferenceBet                  ReferenceType = "bet"
	ReferencePayout               ReferenceType = "payout"
	ReferenceAdminCredit          ReferenceType = "admin_credit"
	ReferenceRefund               ReferenceType = "refund"
	ReferenceCancellationFee      ReferenceType = "cancellation_fee"
	ReferenceCommissionConversion ReferenceType = "commission_conversion"
)

// TransactionStatus defines the status of a ledger record.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an immutable record paired with exactly one balance mutation.
type Transaction struct {
	ID            string            `db:"id" json:"id"`
	WalletID      string            `db:"wallet_id" json:"wallet_id"`
	WalletType    WalletType        `db:"wallet_type" json:"wallet_type"`
	Type          TransactionType   `db:"type" json:"type"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"` // always positive
	Currency      string            `db:"currency" json:"currency"`
	ReferenceType ReferenceType     `db:"reference_type" json:"reference_type"`
	ReferenceID   *string           `db:"reference_id" json:"reference_id,omitempty"`
	Status        TransactionStatus `db:"status" json:"status"`
	Reason        *string           `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// NewTransaction creates a completed ledger record for one wallet.
func NewTransaction(
	wallet *Wallet,
	walletType WalletType,
	txType TransactionType,
	amount decimal.Decimal,
	refType ReferenceType,
	referenceID *string,
	now time.Time,
) *Transaction {
	return &Transaction{
		ID:            uuid.NewString(),
		WalletID:      wallet.ID,
		WalletType:    walletType,
		Type:          txType,
		Amount:        amount,
		Currency:      wallet.Currency,
		ReferenceType: refType,
		ReferenceID:   referenceID,
		Status:        TransactionStatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Signed returns the balance delta this record represents.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
