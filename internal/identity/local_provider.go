package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the weakest credential the local provider accepts.
const MinPasswordLength = 8

// LocalProvider implements Provider over the identity repository with
// bcrypt-hashed credentials. It stands in for a managed auth backend in
// self-hosted deployments.
type LocalProvider struct {
	repo Repository

	mu        sync.Mutex
	listeners []func(*Session)
	current   *Session
}

// NewLocalProvider creates a local credential-store provider.
func NewLocalProvider(repo Repository) *LocalProvider {
	return &LocalProvider{repo: repo}
}

// CreateAccount hashes the password and stores a new credential.
func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}

	if _, err := p.repo.GetCredentialByEmail(ctx, email); err == nil {
		return "", ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return "", fmt.Errorf("check existing credential: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	cred := &Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := p.repo.CreateCredential(ctx, cred); err != nil {
		return "", fmt.Errorf("create credential: %w", err)
	}
	return cred.ID, nil
}

// DeleteAccount removes a credential by account id.
func (p *LocalProvider) DeleteAccount(ctx context.Context, accountID string) error {
	return p.repo.DeleteCredential(ctx, accountID)
}

// SignIn verifies email and password against the stored credential.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	cred, err := p.repo.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	session := &Session{UserID: cred.ID, Email: cred.Email}
	p.setCurrent(session)
	return session, nil
}

// SignOut clears provider-side session state for the user.
func (p *LocalProvider) SignOut(_ context.Context, userID string) error {
	p.mu.Lock()
	if p.current != nil && p.current.UserID == userID {
		p.current = nil
	}
	listeners := p.listeners
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(nil)
	}
	return nil
}

// CurrentSession returns the last established session, or nil.
func (p *LocalProvider) CurrentSession(_ context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

// OnSessionChange registers a session transition callback.
func (p *LocalProvider) OnSessionChange(fn func(*Session)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *LocalProvider) setCurrent(s *Session) {
	p.mu.Lock()
	p.current = s
	listeners := p.listeners
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}
