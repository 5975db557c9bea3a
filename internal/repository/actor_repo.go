// internal/repository/actor_repo.go
package repository

import (
	"context"

	"lotto-ledger/internal/domain"
)

// ActorRepository defines the interface for actor profile operations.
type ActorRepository interface {
	// CreateActorIfAbsent inserts the profile unless it already exists.
	CreateActorIfAbsent(ctx context.Context, q DBExecutor, actor *domain.Actor) error
	// GetActorByID retrieves a profile. Returns util.ErrNotFound if absent.
	GetActorByID(ctx context.Context, q DBExecutor, id string) (*domain.Actor, error)
	// UpdatePermissions overwrites both permission flags.
	UpdatePermissions(ctx context.Context, q DBExecutor, actor *domain.Actor) error
}
