package identity

import "errors"

// Identity errors. ErrUserBlocked is deliberately distinct from
// ErrInvalidCredentials so a blocked account is distinguishable from a
// wrong password.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserBlocked        = errors.New("account is blocked")
	ErrInvalidToken       = errors.New("invalid or expired token")
)
