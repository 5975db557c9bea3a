// internal/api/handler/respond.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/util"
)

// DefaultTimeout bounds the time a single request may spend in a handler.
const DefaultTimeout = 30 * time.Second

// Pagination defaults for list endpoints.
const (
	defaultLimit = 10
	maxLimit     = 100
)

var validate = validator.New()

// errorResponse is the body of every non-2xx response. Amounts are echoed
// back when the ledger reported them.
type errorResponse struct {
	Error    string           `json:"error"`
	Code     string           `json:"code,omitempty"`
	Details  []string         `json:"details,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Balance  *decimal.Decimal `json:"balance,omitempty"`
	Limit    *decimal.Decimal `json:"limit,omitempty"`
	Currency string           `json:"currency,omitempty"`
}

// Helper function to send JSON responses.
func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps service errors onto HTTP status codes.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	statusCode, body := errorBody(err)
	if statusCode == http.StatusInternalServerError || statusCode == http.StatusServiceUnavailable {
		logger.Error("Unhandled service error", "error", err)
	}
	respondWithJSON(w, logger, statusCode, body)
}

func errorBody(err error) (int, errorResponse) {
	var le *util.LedgerError
	if errors.As(err, &le) {
		return ledgerStatus(le.Kind), errorResponse{
			Error:    le.Message,
			Code:     string(le.Kind),
			Amount:   le.Amount,
			Balance:  le.Balance,
			Limit:    le.Limit,
			Currency: le.Currency,
		}
	}

	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Error: "Validation error", Details: formatValidationError(ve)}
	case util.IsError(err, util.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case util.IsError(err, util.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "Resource not found"}
	case util.IsError(err, util.ErrDuplicateEntry):
		return http.StatusConflict, errorResponse{Error: "Resource already exists"}
	}
	return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
}

func ledgerStatus(kind util.ErrorKind) int {
	switch kind {
	case util.KindInvalidAmount, util.KindInvalidWinAmount, util.KindOperationNotSupported:
		return http.StatusBadRequest
	case util.KindWalletNotFound, util.KindTicketNotFound:
		return http.StatusNotFound
	case util.KindInsufficientBalance, util.KindInsufficientCommissionBalance:
		return http.StatusPaymentRequired
	case util.KindPaymentDisabled, util.KindConversionDisabled, util.KindNotOwner:
		return http.StatusForbidden
	case util.KindAlreadyPaid, util.KindAlreadyFinal, util.KindNotWinner, util.KindWindowExpired:
		return http.StatusConflict
	case util.KindPaymentLimitExceeded:
		return http.StatusUnprocessableEntity
	case util.KindTransactionAborted:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func formatValidationError(errs validator.ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", field))
		case "email":
			out = append(out, fmt.Sprintf("%s must be a valid email", field))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		case "max":
			out = append(out, fmt.Sprintf("%s must have maximum length %s", field, e.Param()))
		default:
			out = append(out, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}
	return out
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// An empty body is accepted when every field is optional.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed request body: %v", util.ErrInvalidInput, err)
	}
	return validate.Struct(dst)
}

func parseKind(raw string) (domain.ActorKind, error) {
	kind, ok := domain.ParseActorKind(strings.ToLower(raw))
	if !ok {
		return "", fmt.Errorf("%w: unknown actor kind %q", util.ErrInvalidInput, raw)
	}
	return kind, nil
}

// parsePagination reads limit and offset, falling back to defaults on bad input.
func parsePagination(r *http.Request) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit // Default limit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0 // Default offset
	}
	return limit, offset
}
