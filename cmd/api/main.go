// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "lotto-ledger/internal"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 35 * time.Second // above handler.DefaultTimeout so timeouts reach the client
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		application.Logger.Error("Failed to initialize application", "error", err)
		_ = application.Shutdown(context.Background())
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         ":" + application.Config.ServerPort,
		Handler:      application.HTTPHandler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		application.Logger.Info("Starting HTTP server", "port", application.Config.ServerPort, "db_driver", application.Config.DB.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			application.Logger.Error("HTTP server failed", "error", err)
			_ = application.Shutdown(context.Background())
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	application.Logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	exitCode := 0
	if err := server.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("HTTP server shutdown failed", "error", err)
		exitCode = 1
	}
	// Close the store only after in-flight requests have drained.
	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("Application shutdown failed", "error", err)
		exitCode = 1
	}
	if exitCode == 0 {
		application.Logger.Info("Application gracefully stopped.")
	}
	os.Exit(exitCode)
}
