// internal/service/tx_runner.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lotto-ledger/internal/metrics"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/util"
	"lotto-ledger/pkg/db"
)

// RetryPolicy bounds how often a transaction aborted by contention is re-run.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // doubled after every failed attempt
}

// txRunner runs a unit of work inside one store transaction, retrying the
// whole unit when the store aborted it for contention.
type txRunner struct {
	dbBeginner db.DBTxBeginner
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
	retry      RetryPolicy
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func (r *txRunner) run(ctx context.Context, op string, fn func(q repository.DBExecutor) error) error {
	attempts := r.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := r.retry.Backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = r.once(ctx, op, fn)
		if err == nil || !db.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		r.metrics.ObserveRetry(op)
		r.logger.Warn("Retrying aborted transaction", "operation", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return util.ErrTransactionAborted.
		WithMessage("%s: gave up after %d attempts", op, attempts).
		Wrap(err)
}

func (r *txRunner) once(ctx context.Context, op string, fn func(q repository.DBExecutor) error) error {
	txController, err := r.beginTx(ctx, r.dbBeginner)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer r.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("%s: transaction controller does not implement DBExecutor", op)
	}

	if err := fn(txExecutor); err != nil {
		return err
	}

	if err := r.commitTx(txController); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return nil
}
