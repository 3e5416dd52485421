package identity

import (
	"context"
	"time"
)

// Session is the provider's snapshot of an active session.
type Session struct {
	UserID string
	Email  string
}

// Provider is the external identity collaborator: it owns credentials
// and session state. The application consumes this contract rather than
// a concrete backend; LocalProvider is the self-hosted default.
type Provider interface {
	// CreateAccount provisions a credential and returns its account id.
	CreateAccount(ctx context.Context, email, password string) (string, error)
	// DeleteAccount removes a credential. Used by the provisioning saga
	// to compensate a failed profile write.
	DeleteAccount(ctx context.Context, accountID string) error
	// SignIn verifies credentials and returns the would-be session.
	// It must not establish anything the caller cannot still reject.
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignOut invalidates the provider-side session state for a user.
	SignOut(ctx context.Context, userID string) error
	// CurrentSession returns the active session, or nil when signed out.
	CurrentSession(ctx context.Context) (*Session, error)
	// OnSessionChange registers a callback fired on session transitions.
	OnSessionChange(fn func(*Session))
}

// Credential is a locally stored login credential.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
