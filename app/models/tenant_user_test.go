package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTenantUser(t *testing.T) {
	user, err := NewTenantUser(1, "Jane Doe", "jane@acme.test", "secret123", RoleOwner)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), user.TenantID)
	assert.Equal(t, RoleOwner, user.Role)
	assert.Equal(t, UserStatusActive, user.Status)
	assert.NotEqual(t, "secret123", user.Password)
}

func TestNewTenantUser_ShortPassword(t *testing.T) {
	_, err := NewTenantUser(1, "Jane Doe", "jane@acme.test", "abc", RoleMember)
	assert.Error(t, err)
}

func TestNewTenantUser_InvalidEmail(t *testing.T) {
	_, err := NewTenantUser(1, "Jane Doe", "not-an-email", "secret123", RoleMember)
	assert.Error(t, err)
}

func TestCheckPassword(t *testing.T) {
	user, err := NewTenantUser(1, "Jane Doe", "jane@acme.test", "secret123", RoleMember)
	assert.NoError(t, err)

	assert.True(t, user.CheckPassword("secret123"))
	assert.False(t, user.CheckPassword("wrong"))
	assert.False(t, user.CheckPassword(""))
}

func TestIsActive(t *testing.T) {
	user := &TenantUser{Status: UserStatusActive}
	assert.True(t, user.IsActive())

	user.Status = UserStatusInactive
	assert.False(t, user.IsActive())
}
