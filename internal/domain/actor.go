// internal/domain/actor.go
package domain

import "time"

// ActorKind identifies which family of wallets an actor holds.
type ActorKind string

const (
	ActorKindAgent ActorKind = "agent"
	ActorKindStaff ActorKind = "staff"
)

// ParseActorKind validates a kind coming from outside the process.
func ParseActorKind(s string) (ActorKind, bool) {
	switch ActorKind(s) {
	case ActorKindAgent, ActorKindStaff:
		return ActorKind(s), true
	}
	return "", false
}

// Actor is the part of a user profile the ledger consults. Nil flags mean the
// permission was never set and is therefore allowed.
type Actor struct {
	ID                   string    `db:"id" json:"id"`
	Email                string    `db:"email" json:"email"`
	Kind                 ActorKind `db:"kind" json:"kind"`
	CanProcessPayment    *bool     `db:"can_process_payment" json:"can_process_payment,omitempty"`
	CanConvertCommission *bool     `db:"can_convert_commission" json:"can_convert_commission,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// NewActor creates a profile with no explicit permissions.
func NewActor(id, email string, kind ActorKind, now time.Time) *Actor {
	return &Actor{
		ID:        id,
		Email:     email,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PaymentAllowed is false only when the flag was explicitly disabled.
func (a *Actor) PaymentAllowed() bool {
	return a == nil || a.CanProcessPayment == nil || *a.CanProcessPayment
}

// ConversionAllowed is false only when the flag was explicitly disabled.
func (a *Actor) ConversionAllowed() bool {
	return a == nil || a.CanConvertCommission == nil || *a.CanConvertCommission
}
