// internal/repository/sqlstore/actor_sql.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
	"lotto-ledger/internal/util"
)

// ActorRepository implements repository.ActorRepository.
type ActorRepository struct{}

// NewActorRepository creates a new ActorRepository.
func NewActorRepository() repository.ActorRepository {
	return &ActorRepository{}
}

// CreateActorIfAbsent inserts the profile unless it already exists.
func (r *ActorRepository) CreateActorIfAbsent(ctx context.Context, q repository.DBExecutor, actor *domain.Actor) error {
	query := `INSERT INTO actors (id, email, kind, can_process_payment, can_convert_commission, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`
	_, err := q.ExecContext(ctx, q.Rebind(query),
		actor.ID, actor.Email, actor.Kind, actor.CanProcessPayment, actor.CanConvertCommission,
		actor.CreatedAt, actor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create actor %s: %w", actor.ID, err)
	}
	return nil
}

// GetActorByID retrieves a profile by its id.
func (r *ActorRepository) GetActorByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Actor, error) {
	var actor domain.Actor
	query := `SELECT id, email, kind, can_process_payment, can_convert_commission, created_at, updated_at
              FROM actors WHERE id = ?`
	err := q.GetContext(ctx, &actor, q.Rebind(query), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get actor %s: %w", id, err)
	}
	return &actor, nil
}

// UpdatePermissions overwrites the permission flags of an existing profile.
func (r *ActorRepository) UpdatePermissions(ctx context.Context, q repository.DBExecutor, actor *domain.Actor) error {
	query := `UPDATE actors SET can_process_payment = ?, can_convert_commission = ?, updated_at = ? WHERE id = ?`
	result, err := q.ExecContext(ctx, q.Rebind(query),
		actor.CanProcessPayment, actor.CanConvertCommission, actor.UpdatedAt, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to update permissions for actor %s: %w", actor.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating actor %s: %w", actor.ID, err)
	}
	if n == 0 {
		return util.ErrNotFound
	}
	return nil
}
