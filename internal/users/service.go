package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bkotelnikov/shopadmin/internal/domain"
	"github.com/bkotelnikov/shopadmin/internal/identity"
	"github.com/bkotelnikov/shopadmin/internal/pkg/ctxlog"
)

// Audit action labels.
const (
	ActionCreateUser    = "Create user"
	ActionUpdateUser    = "Update user"
	ActionDeleteUser    = "Delete user"
	ActionResetPassword = "Reset user password"
)

// Auditor records an audit entry without blocking or failing the caller.
type Auditor interface {
	Record(actor *domain.User, action, details string)
}

// PasswordResetMailer sends password reset instructions.
type PasswordResetMailer interface {
	SendPasswordReset(ctx context.Context, email, username string) error
}

// SessionRevoker terminates all sessions of a user. Satisfied by the
// identity service.
type SessionRevoker interface {
	ForceSignOut(ctx context.Context, userID string) error
}

// Provisioner creates accounts through the provisioning saga. Satisfied
// by the identity service.
type Provisioner interface {
	Register(ctx context.Context, input identity.RegisterInput) (*domain.User, error)
}

// Service provides user administration logic.
type Service struct {
	repo        Repository
	provisioner Provisioner
	sessions    SessionRevoker
	auditor     Auditor
	mailer      PasswordResetMailer
}

// NewService creates a new users service.
func NewService(repo Repository, provisioner Provisioner, sessions SessionRevoker, auditor Auditor, mailer PasswordResetMailer) *Service {
	return &Service{
		repo:        repo,
		provisioner: provisioner,
		sessions:    sessions,
		auditor:     auditor,
		mailer:      mailer,
	}
}

// CreateUserInput contains data for provisioning a user.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
}

// ListUsers returns all user profiles ordered by username.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// CreateUser provisions an account through the identity saga: credential
// first, then profile, with compensation on profile failure.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	return s.provisioner.Register(ctx, identity.RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Role:     input.Role,
	})
}

// CreateUserWithLog provisions an account on behalf of actor and records
// one audit entry on success.
func (s *Service) CreateUserWithLog(ctx context.Context, actor *domain.User, input CreateUserInput) (*domain.User, error) {
	user, err := s.CreateUser(ctx, input)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(actor, ActionCreateUser,
		fmt.Sprintf("created user %q (%s) with role %s", user.Username, user.Email, user.Role))
	return user, nil
}

// UpdateUser applies a partial update. Blocking a user also terminates
// every session they hold, so a revoked account cannot keep working on a
// still-valid token pair.
func (s *Service) UpdateUser(ctx context.Context, id string, patch UserPatch) (*domain.User, error) {
	if patch.Role != nil && !patch.Role.IsValid() {
		return nil, fmt.Errorf("unknown role %q", *patch.Role)
	}
	if patch.IsEmpty() {
		return s.repo.GetUserByID(ctx, id)
	}

	user, err := s.repo.UpdateUser(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	if patch.Blocked != nil && *patch.Blocked {
		if err := s.sessions.ForceSignOut(ctx, id); err != nil {
			ctxlog.FromContext(ctx).Warn("force sign-out of blocked user",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return user, nil
}

// UpdateUserWithLog applies a partial update and records one audit entry
// enumerating the changed fields. An empty patch writes nothing and is
// not logged.
func (s *Service) UpdateUserWithLog(ctx context.Context, actor *domain.User, id string, patch UserPatch) (*domain.User, error) {
	user, err := s.UpdateUser(ctx, id, patch)
	if err != nil || patch.IsEmpty() {
		return user, err
	}

	s.auditor.Record(actor, ActionUpdateUser,
		fmt.Sprintf("updated user %q: %s", user.Username, describeUserPatch(patch)))
	return user, nil
}

// DeleteUser removes the user profile. The login credential stays with
// the identity provider. Deleting the acting user's own profile forces
// their sign-out.
func (s *Service) DeleteUser(ctx context.Context, actor *domain.User, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}

	if actor != nil && actor.ID == id {
		if err := s.sessions.ForceSignOut(ctx, id); err != nil {
			ctxlog.FromContext(ctx).Warn("force sign-out after self-deletion",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// DeleteUserWithLog removes the profile and records one audit entry.
func (s *Service) DeleteUserWithLog(ctx context.Context, actor *domain.User, id string) error {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.DeleteUser(ctx, actor, id); err != nil {
		return err
	}

	s.auditor.Record(actor, ActionDeleteUser,
		fmt.Sprintf("deleted user %q (%s)", user.Username, user.Email))
	return nil
}

// ResetPassword emails password reset instructions to the user.
func (s *Service) ResetPassword(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username); err != nil {
		return nil, fmt.Errorf("send password reset: %w", err)
	}
	return user, nil
}

// ResetPasswordWithLog emails reset instructions and records one audit
// entry on success.
func (s *Service) ResetPasswordWithLog(ctx context.Context, actor *domain.User, id string) error {
	user, err := s.ResetPassword(ctx, id)
	if err != nil {
		return err
	}

	s.auditor.Record(actor, ActionResetPassword,
		fmt.Sprintf("sent password reset to %q (%s)", user.Username, user.Email))
	return nil
}

// describeUserPatch renders the set fields of a patch into a
// human-readable phrase for the audit trail.
func describeUserPatch(patch UserPatch) string {
	changes := make([]string, 0, 4)
	if patch.Username != nil {
		changes = append(changes, fmt.Sprintf("username to %q", *patch.Username))
	}
	if patch.Email != nil {
		changes = append(changes, fmt.Sprintf("email to %q", *patch.Email))
	}
	if patch.Role != nil {
		changes = append(changes, fmt.Sprintf("role to %s", *patch.Role))
	}
	if patch.Blocked != nil {
		if *patch.Blocked {
			changes = append(changes, "blocked")
		} else {
			changes = append(changes, "unblocked")
		}
	}

	if len(changes) == 0 {
		return "no fields changed"
	}
	return "changed " + strings.Join(changes, ", ")
}
