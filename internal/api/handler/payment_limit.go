// internal/api/handler/payment_limit.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/service"
)

// PaymentLimitHandler exposes the payment limit configuration.
type PaymentLimitHandler struct {
	service service.PaymentLimitService
	logger  *slog.Logger
}

// NewPaymentLimitHandler creates a new PaymentLimitHandler.
func NewPaymentLimitHandler(svc service.PaymentLimitService, logger *slog.Logger) *PaymentLimitHandler {
	return &PaymentLimitHandler{service: svc, logger: logger}
}

// List returns every stored limit row.
// GET /payment-limits
func (h *PaymentLimitHandler) List(w http.ResponseWriter, r *http.Request) {
	limits, err := h.service.ListLimits(r.Context())
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{"data": limits})
}

// Resolve returns the limit that applies to an actor, or the default limit
// for "global".
// GET /payment-limits/{actorID}
func (h *PaymentLimitHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	limit, err := h.service.ResolveLimit(r.Context(), chi.URLParam(r, "actorID"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, limit)
}

// SetLimitRequest represents the request body for a limit update.
type SetLimitRequest struct {
	MaxPaymentAmount *decimal.Decimal `json:"max_payment_amount" validate:"required"`
	Currency         string           `json:"currency" validate:"omitempty,uppercase,max=8"`
	UpdatedBy        string           `json:"updated_by"`
}

// Set stores the default limit for "global" and an override otherwise.
// PUT /payment-limits/{actorID}
func (h *PaymentLimitHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req SetLimitRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	var (
		limit *domain.PaymentLimit
		err   error
	)
	actorID := chi.URLParam(r, "actorID")
	if actorID == domain.GlobalLimitID {
		limit, err = h.service.SetGlobalLimit(r.Context(), *req.MaxPaymentAmount, req.Currency, req.UpdatedBy)
	} else {
		limit, err = h.service.SetActorLimit(r.Context(), actorID, *req.MaxPaymentAmount, req.Currency, req.UpdatedBy)
	}
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, limit)
}

// Remove deletes an actor override so the default applies again.
// DELETE /payment-limits/{actorID}
func (h *PaymentLimitHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveActorLimit(r.Context(), chi.URLParam(r, "actorID")); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
