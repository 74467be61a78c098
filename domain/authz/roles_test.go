package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		role   string
		action Action
		want   bool
	}{
		{RoleOrgOwner, ActionRead, true},
		{RoleOrgOwner, ActionCreate, true},
		{RoleOrgOwner, ActionUpdate, true},
		{RoleOrgOwner, ActionAdmin, true},

		{RoleOrgUser, ActionRead, true},
		{RoleOrgUser, ActionCreate, true},
		{RoleOrgUser, ActionUpdate, true},
		{RoleOrgUser, ActionAdmin, false},

		{RoleExternalActor, ActionRead, true},
		{RoleExternalActor, ActionCreate, false},
		{RoleExternalActor, ActionUpdate, false},
		{RoleExternalActor, ActionAdmin, false},

		// Unknown roles never grant anything.
		{"superuser", ActionRead, false},
		{"", ActionRead, false},
		// platform_owner is resolved before the matrix; the matrix itself
		// denies it so a stray membership row cannot bypass the check order.
		{RolePlatformOwner, ActionAdmin, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, roleAllows(tt.role, tt.action))
		})
	}
}

func TestAssignmentAllows(t *testing.T) {
	assert.True(t, assignmentAllows(ActionRead))
	assert.True(t, assignmentAllows(ActionUpdate))
	assert.False(t, assignmentAllows(ActionCreate))
	assert.False(t, assignmentAllows(ActionAdmin))
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RolePlatformOwner, RoleOrgOwner, RoleOrgUser, RoleExternalActor} {
		assert.True(t, ValidRole(r), r)
	}
	assert.False(t, ValidRole("admin"))
	assert.False(t, ValidRole(""))
}
