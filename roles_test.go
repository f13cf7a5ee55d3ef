package passwordless_test

import (
	"testing"

	"github.com/goliatone/go-passwordless"
	"github.com/stretchr/testify/assert"
)

func TestUserRoleIsValid(t *testing.T) {
	assert.True(t, passwordless.RoleStandard.IsValid())
	assert.True(t, passwordless.RoleSuperadmin.IsValid())
	assert.False(t, passwordless.UserRole("admin").IsValid())
	assert.False(t, passwordless.UserRole("").IsValid())
}

func TestUserRoleHierarchy(t *testing.T) {
	assert.True(t, passwordless.RoleSuperadmin.IsAtLeast(passwordless.RoleStandard))
	assert.True(t, passwordless.RoleSuperadmin.IsAtLeast(passwordless.RoleSuperadmin))
	assert.True(t, passwordless.RoleStandard.IsAtLeast(passwordless.RoleStandard))
	assert.False(t, passwordless.RoleStandard.IsAtLeast(passwordless.RoleSuperadmin))

	unknown := passwordless.UserRole("root")
	assert.False(t, unknown.IsAtLeast(passwordless.RoleStandard))
}

func TestParseRole(t *testing.T) {
	role, ok := passwordless.ParseRole("superadmin")
	assert.True(t, ok)
	assert.Equal(t, passwordless.RoleSuperadmin, role)

	_, ok = passwordless.ParseRole("wizard")
	assert.False(t, ok)
}

func TestRoleOrDefaultNeverElevates(t *testing.T) {
	assert.Equal(t, passwordless.RoleStandard, passwordless.RoleOrDefault(""))
	assert.Equal(t, passwordless.RoleStandard, passwordless.RoleOrDefault("wizard"))
	assert.Equal(t, passwordless.RoleSuperadmin, passwordless.RoleOrDefault("superadmin"))
}

func TestGetAllRolesOrder(t *testing.T) {
	roles := passwordless.GetAllRoles()
	assert.Equal(t, []passwordless.UserRole{
		passwordless.RoleStandard,
		passwordless.RoleSuperadmin,
	}, roles)
}
