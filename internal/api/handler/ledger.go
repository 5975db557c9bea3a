// internal/api/handler/ledger.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"lotto-ledger/internal/api/types"
	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/service"
)

// LedgerHandler handles HTTP requests for wallet and ticket money operations.
type LedgerHandler struct {
	service service.LedgerService
	logger  *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc service.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: svc,
		logger:  logger,
	}
}

// actorParams reads the {kind} and {actorID} path parameters.
func (h *LedgerHandler) actorParams(r *http.Request) (domain.ActorKind, string, error) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", "", err
	}
	return kind, chi.URLParam(r, "actorID"), nil
}

// CreateWalletsRequest represents the request body for wallet creation.
type CreateWalletsRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// CreateWallets handles explicit wallet creation for an actor.
// POST /actors/{kind}/{actorID}/wallets
func (h *LedgerHandler) CreateWallets(w http.ResponseWriter, r *http.Request) {
	kind, actorID, err := h.actorParams(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req CreateWalletsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	pair, err := h.service.GetOrCreateWallets(r.Context(), kind, actorID, req.Email)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, walletsResponse(pair))
}

// GetWallets handles the wallet balance request.
// GET /actors/{kind}/{actorID}/wallets
func (h *LedgerHandler) GetWallets(w http.ResponseWriter, r *http.Request) {
	kind, actorID, err := h.actorParams(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	pair, err := h.service.GetWallets(r.Context(), kind, actorID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, walletsResponse(pair))
}

// ListTransactions handles the ledger history request.
// GET /actors/{kind}/{actorID}/transactions
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	kind, actorID, err := h.actorParams(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	limit, offset := parsePagination(r)

	records, total, err := h.service.ListTransactions(r.Context(), kind, actorID, limit, offset)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       records,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}

// CreditRequest represents the request body for an admin credit.
type CreditRequest struct {
	Amount     *decimal.Decimal `json:"amount" validate:"required"`
	AdminID    string           `json:"admin_id" validate:"required_with=AdminEmail"`
	AdminEmail string           `json:"admin_email" validate:"omitempty,email"`
}

// Credit handles an admin credit of a main wallet.
// POST /actors/{kind}/{actorID}/credits
func (h *LedgerHandler) Credit(w http.ResponseWriter, r *http.Request) {
	kind, actorID, err := h.actorParams(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req CreditRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	var admin *domain.AdminRef
	if req.AdminID != "" {
		admin = &domain.AdminRef{ID: req.AdminID, Email: req.AdminEmail}
	}
	wallet, record, err := h.service.CreditWallet(r.Context(), kind, actorID, *req.Amount, admin)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"message":        "Credit successful",
		"wallet_id":      wallet.ID,
		"new_balance":    wallet.Balance,
		"currency":       wallet.Currency,
		"transaction_id": record.ID,
	})
}

// RegisterTicketRequest reports a ticket sold at the counter.
type RegisterTicketRequest struct {
	TicketID string           `json:"ticket_id" validate:"required,max=64"`
	BetType  string           `json:"bet_type" validate:"omitempty,max=32"`
	Stake    *decimal.Decimal `json:"stake" validate:"required"`
}

// BetRequest represents the request body for a ticket sale deduction.
type BetRequest struct {
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	ReferenceID *string          `json:"reference_id,omitempty"`
}

// DeductForBet handles the debit of a ticket sale.
// POST /actors/{kind}/{actorID}/bets
func (h *LedgerHandler) DeductForBet(w http.ResponseWriter, r *http.Request) {
	kind, actorID, err := h.actorParams(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req BetRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	pair, err := h.service.DeductForBet(r.Context(), kind, actorID, *req.Amount, req.ReferenceID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, walletsResponse(pair))
}

// PayoutRequest represents the request body for a winning ticket payout.
type PayoutRequest struct {
	TicketID  string           `json:"ticket_id" validate:"required"`
	WinAmount *decimal.Decimal `json:"win_amount" validate:"required"`
}

// ProcessPayout handles the cash payout of a winning ticket.
// POST /actors/{kind}/{actorID}/payouts
func (h *LedgerHandler) ProcessPayout(w http.ResponseWriter, r *http.Request) {
	kind, actorID, err := h.actorParams(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req PayoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	result, err := h.service.ProcessPayout(r.Context(), kind, actorID, req.TicketID, *req.WinAmount)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, result)
}

// ConversionRequest represents the request body for a commission conversion.
type ConversionRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

// ConvertCommission moves commission into the main balance.
// POST /actors/{kind}/{actorID}/commission-conversions
func (h *LedgerHandler) ConvertCommission(w http.ResponseWriter, r *http.Request) {
	kind, actorID, err := h.actorParams(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req ConversionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	pair, err := h.service.ConvertCommissionToBalance(r.Context(), kind, actorID, *req.Amount)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, walletsResponse(pair))
}

// PermissionsRequest represents the request body for permission flags.
// Omitted flags are left unchanged.
type PermissionsRequest struct {
	CanProcessPayment    *bool `json:"can_process_payment"`
	CanConvertCommission *bool `json:"can_convert_commission"`
}

// SetPermissions handles updates of an actor's permission flags.
// PUT /actors/{kind}/{actorID}/permissions
func (h *LedgerHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	kind, actorID, err := h.actorParams(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req PermissionsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	actor, err := h.service.SetActorPermissions(r.Context(), kind, actorID, req.CanProcessPayment, req.CanConvertCommission)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, actor)
}

// CommissionRateRequest represents the request body for a commission rate.
type CommissionRateRequest struct {
	Percentage *decimal.Decimal `json:"percentage" validate:"required"`
}

// SetCommissionRate handles the configuration of a sale commission rate.
// PUT /commissions/{kind}/{betType}
func (h *LedgerHandler) SetCommissionRate(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req CommissionRateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	rate, err := h.service.SetCommissionRate(r.Context(), kind, chi.URLParam(r, "betType"), *req.Percentage)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, rate)
}

// CancelRequest identifies who asks for a ticket cancellation.
type CancelRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Kind    string `json:"kind" validate:"required,oneof=agent staff"`
}

// CancelParticipation handles a ticket cancellation by its purchaser.
// POST /participations/{ticketID}/cancel
func (h *LedgerHandler) CancelParticipation(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	ticket, err := h.service.CancelParticipation(r.Context(), kind, chi.URLParam(r, "ticketID"), req.ActorID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, ticket)
}

// DrawResultRequest carries the outcome of a draw for one ticket.
type DrawResultRequest struct {
	IsWinner  bool             `json:"is_winner"`
	WinAmount *decimal.Decimal `json:"win_amount" validate:"required_if=IsWinner true"`
}

// RecordDrawResult stores the draw outcome of a ticket.
// POST /participations/{ticketID}/draw-result
func (h *LedgerHandler) RecordDrawResult(w http.ResponseWriter, r *http.Request) {
	var req DrawResultRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	winAmount := decimal.Zero
	if req.WinAmount != nil {
		winAmount = *req.WinAmount
	}

	ticket, err := h.service.RecordDrawResult(r.Context(), chi.URLParam(r, "ticketID"), req.IsWinner, winAmount)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, ticket)
}

func walletsResponse(pair *domain.WalletPair) map[string]interface{} {
	return map[string]interface{}{
		"main":       pair.Main,
		"commission": pair.Commission,
		"total":      pair.Total(),
	}
}

// RegisterParticipation records a ticket sold by the actor.
// POST /actors/{kind}/{actorID}/participations
func (h *LedgerHandler) RegisterParticipation(w http.ResponseWriter, r *http.Request) {
	kind, actorID, err := h.actorParams(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req RegisterTicketRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	ticket, err := h.service.RegisterParticipation(r.Context(), kind, actorID, domain.TicketSale{
		ID:      req.TicketID,
		BetType: req.BetType,
		Stake:   *req.Stake,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, ticket)
}
