// internal/api/handler/credit_history.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"lotto-ledger/internal/api/types"
	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/service"
)

// CreditHistoryHandler exposes the admin credit audit trail.
type CreditHistoryHandler struct {
	service service.CreditHistoryService
	logger  *slog.Logger
}

// NewCreditHistoryHandler creates a new CreditHistoryHandler.
func NewCreditHistoryHandler(svc service.CreditHistoryService, logger *slog.Logger) *CreditHistoryHandler {
	return &CreditHistoryHandler{service: svc, logger: logger}
}

// RecordCreditRequest reports a credit made outside the ledger's own credit flow.
type RecordCreditRequest struct {
	AdminID       string           `json:"admin_id" validate:"required"`
	AdminEmail    string           `json:"admin_email" validate:"omitempty,email"`
	RecipientID   string           `json:"recipient_id" validate:"required"`
	RecipientType string           `json:"recipient_type" validate:"required,oneof=agent staff"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	Currency      string           `json:"currency" validate:"required,uppercase,max=8"`
}

// Record appends an audit entry.
// POST /credit-history
func (h *CreditHistoryHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordCreditRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	entry := &domain.CreditHistoryEntry{
		AdminID:       req.AdminID,
		RecipientID:   req.RecipientID,
		RecipientType: domain.ActorKind(req.RecipientType),
		Amount:        *req.Amount,
		Currency:      req.Currency,
	}
	if req.AdminEmail != "" {
		entry.AdminEmail = &req.AdminEmail
	}
	id, err := h.service.Record(r.Context(), entry)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, map[string]string{"id": id})
}

// List returns credit history entries, newest first.
// GET /credit-history?recipient_id=&limit=&offset=
func (h *CreditHistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	entries, total, err := h.service.List(r.Context(), r.URL.Query().Get("recipient_id"), limit, offset)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, types.PaginatedResponse[domain.CreditHistoryEntry]{
		Data:       entries,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}
