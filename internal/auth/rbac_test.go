package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionsForRoleOwnerHasEverything(t *testing.T) {
	perms := PermissionsForRole(RoleOwner)

	for _, p := range []Permission{
		PermCreateAdmins, PermManageUsers, PermManageEvents, PermViewAnalytics,
		PermModerateContent, PermSystemSettings, PermDeleteData,
	} {
		assert.True(t, perms.Has(p), "owner should have %s", p)
	}
}

func TestPermissionsForRoleUserSubset(t *testing.T) {
	perms := PermissionsForRole(RoleUser)

	assert.True(t, perms.Has(PermManageUsers))
	assert.True(t, perms.Has(PermManageEvents))
	assert.True(t, perms.Has(PermViewAnalytics))
	assert.True(t, perms.Has(PermModerateContent))
	assert.False(t, perms.Has(PermCreateAdmins))
	assert.False(t, perms.Has(PermSystemSettings))
	assert.False(t, perms.Has(PermDeleteData))
	assert.False(t, perms.Has(Permission("unknown")))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Owner ")
	assert.True(t, ok)
	assert.Equal(t, RoleOwner, role)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)

	assert.True(t, IsOwner("owner"))
	assert.False(t, IsOwner("user"))
	assert.True(t, HasRole("user", RoleOwner, RoleUser))
}
