// internal/util/errors.go
package util

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common storage-level errors.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input provided")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// ErrorKind classifies ledger failures so callers can render a precise message.
type ErrorKind string

const (
	KindInvalidAmount                 ErrorKind = "INVALID_AMOUNT"
	KindInvalidWinAmount              ErrorKind = "INVALID_WIN_AMOUNT"
	KindWalletNotFound                ErrorKind = "WALLET_NOT_FOUND"
	KindTicketNotFound                ErrorKind = "TICKET_NOT_FOUND"
	KindInsufficientBalance           ErrorKind = "INSUFFICIENT_BALANCE"
	KindInsufficientCommissionBalance ErrorKind = "INSUFFICIENT_COMMISSION_BALANCE"
	KindAlreadyPaid                   ErrorKind = "ALREADY_PAID"
	KindAlreadyFinal                  ErrorKind = "ALREADY_FINAL"
	KindNotWinner                     ErrorKind = "NOT_WINNER"
	KindPaymentLimitExceeded          ErrorKind = "PAYMENT_LIMIT_EXCEEDED"
	KindPaymentDisabled               ErrorKind = "PAYMENT_DISABLED"
	KindConversionDisabled            ErrorKind = "CONVERSION_DISABLED"
	KindNotOwner                      ErrorKind = "NOT_OWNER"
	KindWindowExpired                 ErrorKind = "WINDOW_EXPIRED"
	KindOperationNotSupported         ErrorKind = "OPERATION_NOT_SUPPORTED"
	KindTransactionAborted            ErrorKind = "TRANSACTION_ABORTED"
)

// LedgerError is a classified ledger failure. Optional amounts are echoed back
// to the caller because it has no other way to learn the authoritative values.
type LedgerError struct {
	Kind     ErrorKind
	Message  string
	Amount   *decimal.Decimal
	Balance  *decimal.Decimal
	Limit    *decimal.Decimal
	Currency string
	Err      error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is matches any LedgerError of the same kind, so detailed errors compare
// equal to the sentinels below.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels, one per kind.
var (
	ErrInvalidAmount                 = &LedgerError{Kind: KindInvalidAmount, Message: "amount must be a positive finite number"}
	ErrInvalidWinAmount              = &LedgerError{Kind: KindInvalidWinAmount, Message: "invalid win amount"}
	ErrWalletNotFound                = &LedgerError{Kind: KindWalletNotFound, Message: "wallet not found"}
	ErrTicketNotFound                = &LedgerError{Kind: KindTicketNotFound, Message: "ticket not found"}
	ErrInsufficientBalance           = &LedgerError{Kind: KindInsufficientBalance, Message: "insufficient balance"}
	ErrInsufficientCommissionBalance = &LedgerError{Kind: KindInsufficientCommissionBalance, Message: "insufficient commission balance"}
	ErrAlreadyPaid                   = &LedgerError{Kind: KindAlreadyPaid, Message: "ticket already paid"}
	ErrAlreadyFinal                  = &LedgerError{Kind: KindAlreadyFinal, Message: "ticket already completed or cancelled"}
	ErrNotWinner                     = &LedgerError{Kind: KindNotWinner, Message: "ticket is not a winner"}
	ErrPaymentLimitExceeded          = &LedgerError{Kind: KindPaymentLimitExceeded, Message: "payment limit exceeded"}
	ErrPaymentDisabled               = &LedgerError{Kind: KindPaymentDisabled, Message: "payment processing disabled for this account"}
	ErrConversionDisabled            = &LedgerError{Kind: KindConversionDisabled, Message: "commission conversion disabled for this account"}
	ErrNotOwner                      = &LedgerError{Kind: KindNotOwner, Message: "only the purchaser can cancel this ticket"}
	ErrWindowExpired                 = &LedgerError{Kind: KindWindowExpired, Message: "cancellation window has expired"}
	ErrOperationNotSupported         = &LedgerError{Kind: KindOperationNotSupported, Message: "operation not supported for this actor kind"}
	ErrTransactionAborted            = &LedgerError{Kind: KindTransactionAborted, Message: "transaction aborted"}
)

// NewInvalidAmount reports a rejected amount.
func NewInvalidAmount(amount decimal.Decimal) *LedgerError {
	return &LedgerError{
		Kind:    KindInvalidAmount,
		Message: fmt.Sprintf("amount %s must be greater than zero", amount.String()),
		Amount:  ptr(amount),
	}
}

// NewInsufficientBalance reports a debit larger than the freshly read balance.
func NewInsufficientBalance(kind ErrorKind, amount, balance decimal.Decimal, currency string) *LedgerError {
	label := "balance"
	if kind == KindInsufficientCommissionBalance {
		label = "commission balance"
	}
	return &LedgerError{
		Kind:     kind,
		Message:  fmt.Sprintf("%s %s %s is lower than requested %s %s", label, balance.String(), currency, amount.String(), currency),
		Amount:   ptr(amount),
		Balance:  ptr(balance),
		Currency: currency,
	}
}

// NewPaymentLimitExceeded carries the limit that was exceeded. A zero limit
// with unlimited set means no limit could be resolved.
func NewPaymentLimitExceeded(amount, limit decimal.Decimal, currency string, unresolved bool) *LedgerError {
	msg := fmt.Sprintf("payout of %s %s exceeds payment limit of %s %s", amount.String(), currency, limit.String(), currency)
	if unresolved {
		msg = fmt.Sprintf("payout of %s %s rejected: no payment limit configured", amount.String(), currency)
	}
	return &LedgerError{
		Kind:     KindPaymentLimitExceeded,
		Message:  msg,
		Amount:   ptr(amount),
		Limit:    ptr(limit),
		Currency: currency,
	}
}

// NewPaymentLimitCurrencyMismatch rejects a payout whose limit is set in a
// different currency than the paying wallet.
func NewPaymentLimitCurrencyMismatch(amount, limit decimal.Decimal, limitCurrency, walletCurrency string) *LedgerError {
	return &LedgerError{
		Kind: KindPaymentLimitExceeded,
		Message: fmt.Sprintf("payout of %s %s rejected: payment limit is set in %s, not %s",
			amount.String(), walletCurrency, limitCurrency, walletCurrency),
		Amount:   ptr(amount),
		Limit:    ptr(limit),
		Currency: limitCurrency,
	}
}

// NewInvalidWinAmount reports a payout request that does not match the ticket.
func NewInvalidWinAmount(requested, recorded decimal.Decimal) *LedgerError {
	return &LedgerError{
		Kind:    KindInvalidWinAmount,
		Message: fmt.Sprintf("requested payout %s does not match ticket win amount %s", requested.String(), recorded.String()),
		Amount:  ptr(requested),
	}
}

// WithMessage returns a copy of a sentinel with a specific message.
func (e *LedgerError) WithMessage(format string, args ...any) *LedgerError {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// Wrap returns a copy of a sentinel carrying an underlying cause.
func (e *LedgerError) Wrap(err error) *LedgerError {
	c := *e
	c.Err = err
	return &c
}

// KindOf returns the ledger kind of err, or "" for unclassified errors.
func KindOf(err error) ErrorKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsError reports whether err matches target anywhere in its chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
