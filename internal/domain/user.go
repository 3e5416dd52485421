package domain

import "time"

// Role is the access tier of a user.
type Role string

// Roles form a strict ladder: Simple < Advanced < Admin.
const (
	RoleSimple   Role = "Simple"
	RoleAdvanced Role = "Advanced"
	RoleAdmin    Role = "Admin"
)

var roleRank = map[Role]int{
	RoleSimple:   1,
	RoleAdvanced: 2,
	RoleAdmin:    3,
}

// IsValid checks if the role is one of the known tiers.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// HasPermission reports whether the role is at least minRole on the ladder.
// Unknown roles rank below every tier.
func (r Role) HasPermission(minRole Role) bool {
	return roleRank[r] >= roleRank[minRole]
}

// User represents an application user profile.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Blocked   bool      `json:"is_blocked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshToken is a persisted refresh token bound to a user.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
