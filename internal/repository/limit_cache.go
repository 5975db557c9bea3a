// internal/repository/limit_cache.go
package repository

import (
	"context"

	"lotto-ledger/internal/domain"
)

// LimitCache caches resolved payment limits by actor id.
// Get reports false on a miss. Implementations may be lossy.
type LimitCache interface {
	Get(ctx context.Context, actorID string) (*domain.ResolvedLimit, bool, error)
	Set(ctx context.Context, actorID string, limit domain.ResolvedLimit) error
	// InvalidateAll drops every cached limit, used after any limit write.
	InvalidateAll(ctx context.Context) error
}
