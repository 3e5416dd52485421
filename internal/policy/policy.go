// Package policy implements the pure role-to-route access decision.
package policy

import (
	"strings"

	"github.com/bkotelnikov/shopadmin/internal/domain"
)

// Well-known view targets.
const (
	TargetProducts   = "/products"
	TargetCategories = "/categories"
	TargetUsers      = "/users"
	TargetAuditLog   = "/audit"
	TargetLogin      = "/auth/login"
)

// Decision is the outcome of an access check. When Allowed is false,
// RedirectTo names the view the caller should be sent to instead.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func redirect(to string) Decision {
	return Decision{Allowed: false, RedirectTo: to}
}

// Decide maps (role, target view) to allow or redirect. It is pure and
// synchronous: no I/O, no session state.
//
// Simple and Advanced are fenced off the user-management and audit-log
// views; Admin is unrestricted; an unknown or missing role denies
// everything.
func Decide(role domain.Role, target string) Decision {
	switch role {
	case domain.RoleSimple, domain.RoleAdvanced:
		if isRestrictedView(target) {
			return redirect(TargetProducts)
		}
		return allow()
	case domain.RoleAdmin:
		return allow()
	default:
		return redirect(TargetProducts)
	}
}

// isRestrictedView reports whether target is one of the admin-only views.
func isRestrictedView(target string) bool {
	return strings.HasPrefix(target, TargetUsers) || strings.HasPrefix(target, TargetAuditLog)
}
