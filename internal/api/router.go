// internal/api/router.go
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lotto-ledger/internal/api/handler"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Ledger        *handler.LedgerHandler
	PaymentLimits *handler.PaymentLimitHandler
	CreditHistory *handler.CreditHistoryHandler
	Metrics       http.Handler // optional
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(h Handlers, store Pinger, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Set a default timeout for requests

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			if err := store.PingContext(r.Context()); err != nil {
				logger.Warn("Health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("store unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	// Wallet and payout routes, scoped by actor kind
	r.Route("/actors/{kind}/{actorID}", func(r chi.Router) {
		r.Post("/wallets", h.Ledger.CreateWallets)
		r.Get("/wallets", h.Ledger.GetWallets)
		r.Get("/transactions", h.Ledger.ListTransactions)
		r.Post("/credits", h.Ledger.Credit)
		r.Post("/bets", h.Ledger.DeductForBet)
		r.Post("/payouts", h.Ledger.ProcessPayout)
		r.Post("/commission-conversions", h.Ledger.ConvertCommission)
		r.Put("/permissions", h.Ledger.SetPermissions)
		r.Post("/participations", h.Ledger.RegisterParticipation)
	})

	r.Put("/commissions/{kind}/{betType}", h.Ledger.SetCommissionRate)

	r.Route("/participations/{ticketID}", func(r chi.Router) {
		r.Post("/cancel", h.Ledger.CancelParticipation)
		r.Post("/draw-result", h.Ledger.RecordDrawResult)
	})

	r.Route("/payment-limits", func(r chi.Router) {
		r.Get("/", h.PaymentLimits.List)
		r.Get("/{actorID}", h.PaymentLimits.Resolve)
		r.Put("/{actorID}", h.PaymentLimits.Set)
		r.Delete("/{actorID}", h.PaymentLimits.Remove)
	})

	r.Route("/credit-history", func(r chi.Router) {
		r.Get("/", h.CreditHistory.List)
		r.Post("/", h.CreditHistory.Record)
	})

	return r
}
