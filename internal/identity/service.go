package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bkotelnikov/shopadmin/internal/domain"
	"github.com/bkotelnikov/shopadmin/internal/pkg/ctxlog"
	"github.com/bkotelnikov/shopadmin/internal/pkg/metrics"
)

// RegisterInput contains data for account provisioning.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
}

// LoginInput contains login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// Service implements identity business logic. Account provisioning is a
// two-step saga: the provider owns the credential, the repository owns
// the profile, and a failed profile write compensates by deleting the
// credential.
type Service struct {
	repo     Repository
	provider Provider
	auth     Authenticator
}

// NewService creates a new identity service.
func NewService(repo Repository, provider Provider, auth Authenticator) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		auth:     auth,
	}
}

// Register provisions a credential with the provider and then creates
// the user profile. If the profile write fails, the credential is
// deleted so no orphaned login remains.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if _, err := s.repo.GetUserByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	role := input.Role
	if role == "" {
		role = domain.RoleSimple
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	accountID, err := s.provider.CreateAccount(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:       accountID,
		Username: input.Username,
		Email:    input.Email,
		Role:     role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		// Compensate: without a profile the credential must not survive.
		if delErr := s.provider.DeleteAccount(ctx, accountID); delErr != nil {
			ctxlog.FromContext(ctx).Error("orphaned credential after failed profile write",
				slog.String("account_id", accountID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials, loads the profile and rejects blocked
// accounts before any session is established.
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, *TokenPair, error) {
	session, err := s.provider.SignIn(ctx, input.Email, input.Password)
	if err != nil {
		metrics.AuthLoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, nil, err
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.AuthLoginAttempts.WithLabelValues("invalid_credentials").Inc()
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	if user.Blocked {
		metrics.AuthLoginAttempts.WithLabelValues("blocked").Inc()
		if err := s.provider.SignOut(ctx, user.ID); err != nil {
			ctxlog.FromContext(ctx).Warn("sign out blocked user", slog.String("error", err.Error()))
		}
		return nil, nil, ErrUserBlocked
	}

	tokens, err := s.auth.GenerateTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	metrics.AuthLoginAttempts.WithLabelValues("success").Inc()
	return user, tokens, nil
}

// RefreshTokens exchanges a valid refresh token for a new pair. A
// blocked account cannot refresh its way back in.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if err == nil && stored != nil {
		user, userErr := s.repo.GetUserByID(ctx, stored.UserID)
		if userErr == nil && user.Blocked {
			return nil, ErrUserBlocked
		}
	}

	return s.auth.RefreshTokens(ctx, refreshToken)
}

// Logout invalidates the presented refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.auth.RevokeRefreshToken(ctx, refreshToken)
}

// GetUserByID returns a user profile by id.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ValidateAccessToken delegates to the authenticator.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (string, domain.Role, error) {
	return s.auth.ValidateAccessToken(ctx, token)
}

// ForceSignOut terminates every session of a user: all refresh tokens
// are revoked and provider-side session state is cleared.
func (s *Service) ForceSignOut(ctx context.Context, userID string) error {
	if err := s.auth.RevokeUserTokens(ctx, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	if err := s.provider.SignOut(ctx, userID); err != nil {
		return fmt.Errorf("provider sign out: %w", err)
	}
	return nil
}
