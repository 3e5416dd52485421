// Package users provides administration of user accounts: listing,
// provisioning, partial edits including block state and role changes,
// and profile deletion.
package users

import (
	"context"
	"errors"

	"github.com/bkotelnikov/shopadmin/internal/domain"
)

// ErrUserNotFound is returned when the requested user does not exist.
var ErrUserNotFound = errors.New("user not found")

// UserPatch is a partial user update. Nil fields are left unchanged.
type UserPatch struct {
	Username *string
	Email    *string
	Role     *domain.Role
	Blocked  *bool
}

// IsEmpty reports whether no field is set.
func (p UserPatch) IsEmpty() bool {
	return p.Username == nil && p.Email == nil && p.Role == nil && p.Blocked == nil
}

// Repository defines user administration data operations.
type Repository interface {
	// ListUsers returns all user profiles ordered by username.
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	// UpdateUser applies a partial update and returns the resulting user.
	UpdateUser(ctx context.Context, id string, patch UserPatch) (*domain.User, error)
	// DeleteUser removes the user profile. Credentials are owned by the
	// identity provider and are not touched.
	DeleteUser(ctx context.Context, id string) error
}
