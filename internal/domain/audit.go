package domain

import "time"

// AuditEntry is an immutable record of a mutation performed by an actor.
// Actor fields are denormalized at write time so entries outlive the user
// they describe.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	ActorMail string    `json:"actor_email"`
	ActorRole string    `json:"actor_role"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
