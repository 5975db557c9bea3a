// internal/api/handler/handler_test.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/service"
	"lotto-ledger/internal/util"
)

// MockLedgerService is a mock implementation of service.LedgerService.
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) GetOrCreateWallets(ctx context.Context, kind domain.ActorKind, actorID, email string) (*domain.WalletPair, error) {
	args := m.Called(ctx, kind, actorID, email)
	return pairArg(args.Get(0)), args.Error(1)
}

func (m *MockLedgerService) GetWallets(ctx context.Context, kind domain.ActorKind, actorID string) (*domain.WalletPair, error) {
	args := m.Called(ctx, kind, actorID)
	return pairArg(args.Get(0)), args.Error(1)
}

func (m *MockLedgerService) ListTransactions(ctx context.Context, kind domain.ActorKind, walletID string, limit, offset int) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, kind, walletID, limit, offset)
	return args.Get(0).([]domain.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerService) CreditWallet(ctx context.Context, kind domain.ActorKind, walletID string, amount decimal.Decimal, admin *domain.AdminRef) (*domain.Wallet, *domain.Transaction, error) {
	args := m.Called(ctx, kind, walletID, amount, admin)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Wallet), args.Get(1).(*domain.Transaction), args.Error(2)
}

func (m *MockLedgerService) DeductForBet(ctx context.Context, kind domain.ActorKind, walletID string, amount decimal.Decimal, referenceID *string) (*domain.WalletPair, error) {
	args := m.Called(ctx, kind, walletID, amount, referenceID)
	return pairArg(args.Get(0)), args.Error(1)
}

func (m *MockLedgerService) ProcessPayout(ctx context.Context, kind domain.ActorKind, actorID, ticketID string, winAmount decimal.Decimal) (*service.PayoutResult, error) {
	args := m.Called(ctx, kind, actorID, ticketID, winAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PayoutResult), args.Error(1)
}

func (m *MockLedgerService) ConvertCommissionToBalance(ctx context.Context, kind domain.ActorKind, actorID string, amount decimal.Decimal) (*domain.WalletPair, error) {
	args := m.Called(ctx, kind, actorID, amount)
	return pairArg(args.Get(0)), args.Error(1)
}

func (m *MockLedgerService) CancelParticipation(ctx context.Context, kind domain.ActorKind, ticketID, actorID string) (*domain.Participation, error) {
	args := m.Called(ctx, kind, ticketID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Participation), args.Error(1)
}

func (m *MockLedgerService) RecordDrawResult(ctx context.Context, ticketID string, isWinner bool, winAmount decimal.Decimal) (*domain.Participation, error) {
	args := m.Called(ctx, ticketID, isWinner, winAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Participation), args.Error(1)
}

func (m *MockLedgerService) SetCommissionRate(ctx context.Context, kind domain.ActorKind, betType string, percentage decimal.Decimal) (*domain.CommissionRate, error) {
	args := m.Called(ctx, kind, betType, percentage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommissionRate), args.Error(1)
}

func (m *MockLedgerService) SetActorPermissions(ctx context.Context, kind domain.ActorKind, actorID string, canProcessPayment, canConvertCommission *bool) (*domain.Actor, error) {
	args := m.Called(ctx, kind, actorID, canProcessPayment, canConvertCommission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Actor), args.Error(1)
}

func (m *MockLedgerService) RegisterParticipation(ctx context.Context, kind domain.ActorKind, actorID string, sale domain.TicketSale) (*domain.Participation, error) {
	args := m.Called(ctx, kind, actorID, sale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Participation), args.Error(1)
}

func pairArg(v interface{}) *domain.WalletPair {
	if v == nil {
		return nil
	}
	return v.(*domain.WalletPair)
}

// MockPaymentLimitService is a mock implementation of service.PaymentLimitService.
type MockPaymentLimitService struct {
	mock.Mock
}

func (m *MockPaymentLimitService) ResolveLimit(ctx context.Context, actorID string) (domain.ResolvedLimit, error) {
	args := m.Called(ctx, actorID)
	return args.Get(0).(domain.ResolvedLimit), args.Error(1)
}

func (m *MockPaymentLimitService) ResolveLimitTx(ctx context.Context, q repository.DBExecutor, actorID string) (domain.ResolvedLimit, error) {
	args := m.Called(ctx, q, actorID)
	return args.Get(0).(domain.ResolvedLimit), args.Error(1)
}

func (m *MockPaymentLimitService) SetGlobalLimit(ctx context.Context, amount decimal.Decimal, currency, updatedBy string) (*domain.PaymentLimit, error) {
	args := m.Called(ctx, amount, currency, updatedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentLimit), args.Error(1)
}

func (m *MockPaymentLimitService) SetActorLimit(ctx context.Context, actorID string, amount decimal.Decimal, currency, updatedBy string) (*domain.PaymentLimit, error) {
	args := m.Called(ctx, actorID, amount, currency, updatedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentLimit), args.Error(1)
}

func (m *MockPaymentLimitService) RemoveActorLimit(ctx context.Context, actorID string) error {
	return m.Called(ctx, actorID).Error(0)
}

func (m *MockPaymentLimitService) ListLimits(ctx context.Context) ([]domain.PaymentLimit, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.PaymentLimit), args.Error(1)
}

// serve routes a single request through a chi router so URL params resolve.
// MockCreditHistoryService is a mock implementation of service.CreditHistoryService.
type MockCreditHistoryService struct {
	mock.Mock
}

func (m *MockCreditHistoryService) Record(ctx context.Context, entry *domain.CreditHistoryEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

func (m *MockCreditHistoryService) List(ctx context.Context, recipientID string, limit, offset int) ([]domain.CreditHistoryEntry, int64, error) {
	args := m.Called(ctx, recipientID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.CreditHistoryEntry), args.Get(1).(int64), args.Error(2)
}

func serve(method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestErrorBodyStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{util.NewInvalidAmount(decimal.Zero), http.StatusBadRequest},
		{util.ErrOperationNotSupported, http.StatusBadRequest},
		{util.ErrWalletNotFound.WithMessage("wallet x not found"), http.StatusNotFound},
		{util.ErrTicketNotFound, http.StatusNotFound},
		{util.NewInsufficientBalance(util.KindInsufficientBalance, decimal.NewFromInt(5), decimal.NewFromInt(1), "XAF"), http.StatusPaymentRequired},
		{util.ErrPaymentDisabled, http.StatusForbidden},
		{util.ErrNotOwner, http.StatusForbidden},
		{util.ErrAlreadyPaid, http.StatusConflict},
		{util.ErrWindowExpired, http.StatusConflict},
		{util.ErrTransactionAborted.Wrap(errors.New("40001")), http.StatusServiceUnavailable},
		{util.ErrInvalidInput, http.StatusBadRequest},
		{util.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := errorBody(tt.err)
		assert.Equal(t, tt.status, status, "error %v", tt.err)
	}
}

func TestProcessPayoutHandler(t *testing.T) {
	logger := util.DiscardLogger()

	t.Run("Success", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewLedgerHandler(svc, logger)
		result := &service.PayoutResult{
			Ticket:           &domain.Participation{ID: "t-1", Paid: true},
			Wallets:          &domain.WalletPair{Main: &domain.Wallet{ID: "ag-1", Balance: decimal.NewFromInt(1500)}},
			PaymentAmount:    decimal.NewFromInt(1000),
			CommissionAmount: decimal.NewFromInt(20),
		}
		svc.On("ProcessPayout", mock.Anything, domain.ActorKindAgent, "ag-1", "t-1", decimal.RequireFromString("1000")).Return(result, nil).Once()

		rec := serve(http.MethodPost, "/actors/{kind}/{actorID}/payouts", "/actors/agent/ag-1/payouts",
			`{"ticket_id": "t-1", "win_amount": "1000"}`, h.ProcessPayout)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "1000", body["payment_amount"])
		assert.Equal(t, "20", body["commission_amount"])
		svc.AssertExpectations(t)
	})

	t.Run("LimitExceededEchoesLimit", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewLedgerHandler(svc, logger)
		limitErr := util.NewPaymentLimitExceeded(decimal.NewFromInt(500), decimal.NewFromInt(100), "XAF", false)
		svc.On("ProcessPayout", mock.Anything, domain.ActorKindAgent, "ag-1", "t-2", mock.Anything).Return(nil, limitErr).Once()

		rec := serve(http.MethodPost, "/actors/{kind}/{actorID}/payouts", "/actors/agent/ag-1/payouts",
			`{"ticket_id": "t-2", "win_amount": "500"}`, h.ProcessPayout)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, string(util.KindPaymentLimitExceeded), body["code"])
		assert.Equal(t, "100", body["limit"])
		assert.Equal(t, "XAF", body["currency"])
	})

	t.Run("ValidationErrorNeverReachesService", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewLedgerHandler(svc, logger)

		rec := serve(http.MethodPost, "/actors/{kind}/{actorID}/payouts", "/actors/agent/ag-1/payouts",
			`{"win_amount": "500"}`, h.ProcessPayout)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "Validation error", body["error"])
		assert.Contains(t, body["details"], "TicketID is required")
		svc.AssertNotCalled(t, "ProcessPayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewLedgerHandler(svc, logger)

		rec := serve(http.MethodPost, "/actors/{kind}/{actorID}/payouts", "/actors/dealer/ag-1/payouts",
			`{"ticket_id": "t-1", "win_amount": "1"}`, h.ProcessPayout)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertExpectations(t)
	})
}

func TestCreditHandlerAdminRef(t *testing.T) {
	svc := new(MockLedgerService)
	h := NewLedgerHandler(svc, util.DiscardLogger())
	admin := &domain.AdminRef{ID: "admin-1", Email: "boss@shop.test"}
	wallet := &domain.Wallet{ID: "st-1", Balance: decimal.NewFromInt(250), Currency: "XAF"}
	record := &domain.Transaction{ID: "tx-1"}
	svc.On("CreditWallet", mock.Anything, domain.ActorKindStaff, "st-1", decimal.RequireFromString("250"), admin).Return(wallet, record, nil).Once()

	rec := serve(http.MethodPost, "/actors/{kind}/{actorID}/credits", "/actors/staff/st-1/credits",
		`{"amount": "250", "admin_id": "admin-1", "admin_email": "boss@shop.test"}`, h.Credit)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "tx-1", body["transaction_id"])
	assert.Equal(t, "250", body["new_balance"])
	svc.AssertExpectations(t)
}

func TestRecordDrawResultHandler(t *testing.T) {
	t.Run("LoserDefaultsToZero", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewLedgerHandler(svc, util.DiscardLogger())
		ticket := &domain.Participation{ID: "t-9", Status: domain.ParticipationCompleted}
		svc.On("RecordDrawResult", mock.Anything, "t-9", false, decimal.Zero).Return(ticket, nil).Once()

		rec := serve(http.MethodPost, "/participations/{ticketID}/draw-result", "/participations/t-9/draw-result",
			`{"is_winner": false}`, h.RecordDrawResult)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("WinnerNeedsAmount", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewLedgerHandler(svc, util.DiscardLogger())

		rec := serve(http.MethodPost, "/participations/{ticketID}/draw-result", "/participations/t-9/draw-result",
			`{"is_winner": true}`, h.RecordDrawResult)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertExpectations(t)
	})
}

func TestListTransactionsPagination(t *testing.T) {
	svc := new(MockLedgerService)
	h := NewLedgerHandler(svc, util.DiscardLogger())
	svc.On("ListTransactions", mock.Anything, domain.ActorKindAgent, "ag-1", maxLimit, 0).Return([]domain.Transaction{}, int64(0), nil).Once()

	rec := serve(http.MethodGet, "/actors/{kind}/{actorID}/transactions", "/actors/agent/ag-1/transactions?limit=5000&offset=-3",
		"", h.ListTransactions)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, maxLimit, body["limit"])
	assert.EqualValues(t, 0, body["offset"])
	svc.AssertExpectations(t)
}

func TestPaymentLimitHandlerSet(t *testing.T) {
	amount := decimal.RequireFromString("75000")

	t.Run("GlobalRow", func(t *testing.T) {
		svc := new(MockPaymentLimitService)
		h := NewPaymentLimitHandler(svc, util.DiscardLogger())
		svc.On("SetGlobalLimit", mock.Anything, amount, "XAF", "admin-1").
			Return(&domain.PaymentLimit{ID: domain.GlobalLimitID, MaxPaymentAmount: amount, Currency: "XAF"}, nil).Once()

		rec := serve(http.MethodPut, "/payment-limits/{actorID}", "/payment-limits/global",
			`{"max_payment_amount": "75000", "currency": "XAF", "updated_by": "admin-1"}`, h.Set)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("ActorOverride", func(t *testing.T) {
		svc := new(MockPaymentLimitService)
		h := NewPaymentLimitHandler(svc, util.DiscardLogger())
		svc.On("SetActorLimit", mock.Anything, "ag-7", amount, "", "").
			Return(&domain.PaymentLimit{ID: "ag-7", MaxPaymentAmount: amount, Currency: "XAF"}, nil).Once()

		rec := serve(http.MethodPut, "/payment-limits/{actorID}", "/payment-limits/ag-7",
			`{"max_payment_amount": "75000"}`, h.Set)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ag-7", decodeBody(t, rec)["id"])
		svc.AssertExpectations(t)
	})

	t.Run("LowercaseCurrencyRejected", func(t *testing.T) {
		svc := new(MockPaymentLimitService)
		h := NewPaymentLimitHandler(svc, util.DiscardLogger())

		rec := serve(http.MethodPut, "/payment-limits/{actorID}", "/payment-limits/ag-7",
			`{"max_payment_amount": "1", "currency": "xaf"}`, h.Set)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("RemoveMissingOverride", func(t *testing.T) {
		svc := new(MockPaymentLimitService)
		h := NewPaymentLimitHandler(svc, util.DiscardLogger())
		svc.On("RemoveActorLimit", mock.Anything, "ag-8").Return(util.ErrNotFound).Once()

		rec := serve(http.MethodDelete, "/payment-limits/{actorID}", "/payment-limits/ag-8", "", h.Remove)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		svc.AssertExpectations(t)
	})
}

func TestRegisterParticipationHandler(t *testing.T) {
	const pattern = "/actors/{kind}/{actorID}/participations"

	t.Run("Created", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewLedgerHandler(svc, util.DiscardLogger())
		sale := domain.TicketSale{ID: "t-9", BetType: "double", Stake: decimal.RequireFromString("12.5")}
		ticket := &domain.Participation{ID: "t-9", UserID: "ag-1", Status: domain.ParticipationActive}
		svc.On("RegisterParticipation", mock.Anything, domain.ActorKindAgent, "ag-1", sale).Return(ticket, nil).Once()

		rec := serve(http.MethodPost, pattern, "/actors/agent/ag-1/participations",
			`{"ticket_id": "t-9", "bet_type": "double", "stake": "12.5"}`, h.RegisterParticipation)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "t-9", decodeBody(t, rec)["id"])
		svc.AssertExpectations(t)
	})

	t.Run("DuplicateTicket", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewLedgerHandler(svc, util.DiscardLogger())
		svc.On("RegisterParticipation", mock.Anything, domain.ActorKindStaff, "st-1", mock.Anything).
			Return(nil, fmt.Errorf("register participation: %w", util.ErrDuplicateEntry)).Once()

		rec := serve(http.MethodPost, pattern, "/actors/staff/st-1/participations",
			`{"ticket_id": "t-1", "stake": "5"}`, h.RegisterParticipation)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("StakeRequired", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewLedgerHandler(svc, util.DiscardLogger())

		rec := serve(http.MethodPost, pattern, "/actors/agent/ag-1/participations", `{"ticket_id": "t-1"}`, h.RegisterParticipation)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "RegisterParticipation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSetPermissionsHandlerPassesKind(t *testing.T) {
	svc := new(MockLedgerService)
	h := NewLedgerHandler(svc, util.DiscardLogger())
	disabled := false
	svc.On("SetActorPermissions", mock.Anything, domain.ActorKindStaff, "ag-1", &disabled, (*bool)(nil)).
		Return(nil, fmt.Errorf("set actor permissions: no staff actor ag-1: %w", util.ErrNotFound)).Once()

	rec := serve(http.MethodPut, "/actors/{kind}/{actorID}/permissions", "/actors/staff/ag-1/permissions",
		`{"can_process_payment": false}`, h.SetPermissions)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestCreditHistoryRecordHandler(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		svc := new(MockCreditHistoryService)
		h := NewCreditHistoryHandler(svc, util.DiscardLogger())
		svc.On("Record", mock.Anything, mock.MatchedBy(func(e *domain.CreditHistoryEntry) bool {
			return e.AdminID == "admin-1" && e.RecipientID == "st-1" && e.RecipientType == domain.ActorKindStaff &&
				e.Amount.Equal(decimal.RequireFromString("75.25")) && e.Currency == "XAF" &&
				e.AdminEmail != nil && *e.AdminEmail == "boss@shop.test"
		})).Return("entry-1", nil).Once()

		rec := serve(http.MethodPost, "/credit-history", "/credit-history",
			`{"admin_id": "admin-1", "admin_email": "boss@shop.test", "recipient_id": "st-1", "recipient_type": "staff", "amount": "75.25", "currency": "XAF"}`,
			h.Record)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "entry-1", decodeBody(t, rec)["id"])
		svc.AssertExpectations(t)
	})

	t.Run("RecipientTypeValidated", func(t *testing.T) {
		svc := new(MockCreditHistoryService)
		h := NewCreditHistoryHandler(svc, util.DiscardLogger())

		rec := serve(http.MethodPost, "/credit-history", "/credit-history",
			`{"admin_id": "admin-1", "recipient_id": "p-1", "recipient_type": "player", "amount": "5", "currency": "XAF"}`,
			h.Record)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})
}
