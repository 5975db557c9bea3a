// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	router "lotto-ledger/internal/api"
	"lotto-ledger/internal/api/handler"
	"lotto-ledger/internal/config"
	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/metrics"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/repository/rediscache"
	"lotto-ledger/internal/repository/sqlstore"
	"lotto-ledger/internal/service"
	"lotto-ledger/internal/util"
	"lotto-ledger/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config  *config.AppConfig
	Logger  *slog.Logger
	DB      *sqlx.DB
	Redis   redis.UniversalClient // nil when the limit cache is disabled
	Metrics *metrics.Metrics

	// Services
	LedgerService        service.LedgerService
	PaymentLimitService  service.PaymentLimitService
	CreditHistoryService service.CreditHistoryService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel, cfg.LogFormat)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "db_driver", cfg.DB.Driver)

	// 3. Connect to Database and create the schema
	database, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	if err := db.Migrate(ctx, database, string(domain.ActorKindAgent), string(domain.ActorKindStaff)); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	app.Logger.Info("Database connection established.")

	// 4. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.NewMetrics(registry)

	// 5. Optional payment limit cache
	var limitCache repository.LimitCache
	if cfg.Redis.Addr != "" {
		rdb, err := rediscache.Connect(ctx, rediscache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.Redis = rdb
		limitCache = rediscache.NewLimitCache(rdb, cfg.Redis.LimitTTL)
		app.Logger.Info("Payment limit cache enabled.", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.LimitTTL)
	}

	// 6. Initialize Services
	clock := util.RealClock{}
	creditHistoryRepo := sqlstore.NewCreditHistoryRepository()
	app.PaymentLimitService = service.NewPaymentLimitService(
		app.DB,
		sqlstore.NewPaymentLimitRepository(),
		limitCache,
		cfg.Ledger.DefaultPaymentLimit,
		cfg.Ledger.DefaultCurrency,
		clock,
		app.Metrics,
		app.Logger,
	)
	app.CreditHistoryService = service.NewCreditHistoryService(app.DB, creditHistoryRepo, clock, app.Logger)
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.LedgerService = service.NewLedgerService(service.LedgerDeps{
		DBBeginner: app.DB, // This is the DBTxBeginner
		DBExecutor: app.DB, // This is the DBExecutor
		Kinds: []service.KindBinding{
			{Policy: service.AgentPolicy(cfg.Ledger), Store: service.NewSQLKindStore(domain.ActorKindAgent)},
			{Policy: service.StaffPolicy(cfg.Ledger), Store: service.NewSQLKindStore(domain.ActorKindStaff)},
		},
		ActorRepo:          sqlstore.NewActorRepository(),
		ParticipationRepo:  sqlstore.NewParticipationRepository(),
		CreditHistoryRepo:  creditHistoryRepo,
		Limits:             app.PaymentLimitService,
		FeePolicy:          service.NewCancellationFeePolicy(cfg.Ledger.CancellationFeePercent),
		CancellationWindow: cfg.Ledger.CancellationWindow,
		DefaultCurrency:    cfg.Ledger.DefaultCurrency,
		BeginTx:            db.BeginTx,
		CommitTx:           db.CommitTx,
		RollbackTx:         db.RollbackTx,
		Retry:              service.RetryPolicy{MaxAttempts: cfg.Ledger.TxMaxAttempts, Backoff: cfg.Ledger.TxRetryBackoff},
		Clock:              clock,
		Metrics:            app.Metrics,
		Logger:             app.Logger,
	})
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	app.HTTPHandler = router.NewRouter(router.Handlers{
		Ledger:        handler.NewLedgerHandler(app.LedgerService, app.Logger),
		PaymentLimits: handler.NewPaymentLimitHandler(app.PaymentLimitService, app.Logger),
		CreditHistory: handler.NewCreditHistoryHandler(app.CreditHistoryService, app.Logger),
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, app.DB, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close redis connection", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
