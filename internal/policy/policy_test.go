package policy

import (
	"testing"

	"github.com/bkotelnikov/shopadmin/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDecide_RestrictedViews(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleSimple, domain.RoleAdvanced} {
		for _, target := range []string{TargetUsers, TargetAuditLog, "/users/42", "/audit?limit=10"} {
			d := Decide(role, target)
			assert.False(t, d.Allowed, "role %s should be denied %s", role, target)
			assert.Equal(t, TargetProducts, d.RedirectTo)
		}
	}
}

func TestDecide_AdminUnrestricted(t *testing.T) {
	for _, target := range []string{TargetProducts, TargetCategories, TargetUsers, TargetAuditLog} {
		d := Decide(domain.RoleAdmin, target)
		assert.True(t, d.Allowed, "admin should reach %s", target)
	}
}

func TestDecide_CatalogViewsOpenToAll(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleSimple, domain.RoleAdvanced, domain.RoleAdmin} {
		assert.True(t, Decide(role, TargetProducts).Allowed)
		assert.True(t, Decide(role, TargetCategories).Allowed)
	}
}

func TestDecide_UnknownRoleDeniesAll(t *testing.T) {
	for _, role := range []domain.Role{"", "Moderator", "admin"} {
		d := Decide(role, TargetProducts)
		assert.False(t, d.Allowed, "role %q should be denied", role)
		assert.Equal(t, TargetProducts, d.RedirectTo)
	}
}
