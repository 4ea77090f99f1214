package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanPerform_CapabilityTable(t *testing.T) {
	tests := []struct {
		role    Role
		action  Action
		allowed bool
	}{
		{RoleSystemAdmin, ActionCreateOrganization, true},
		{RoleOrgAdmin, ActionCreateOrganization, false},
		{RoleInspector, ActionCreateOrganization, false},

		{RoleSystemAdmin, ActionManageOrganization, true},
		{RoleOrgAdmin, ActionManageOrganization, true},
		{RoleMember, ActionManageOrganization, false},

		{RoleOrgAdmin, ActionInviteUser, true},
		{RoleInspector, ActionInviteUser, false},

		// Any role except the most restricted may create inspections,
		// manage action plans, and export data.
		{RoleInspector, ActionCreateInspection, true},
		{RoleMember, ActionCreateInspection, true},
		{RoleClient, ActionCreateInspection, false},
		{RoleMember, ActionManageActionPlans, true},
		{RoleClient, ActionManageActionPlans, false},
		{RoleInspector, ActionExportData, true},
		{RoleClient, ActionExportData, false},

		{RoleOrgAdmin, ActionEditInspection, true},
		{RoleInspector, ActionEditInspection, false},

		{RoleOrgAdmin, ActionDeleteInspection, true},
		{RoleInspector, ActionDeleteInspection, false},

		{RoleSystemAdmin, ActionManageRolePermissions, true},
		{RoleOrgAdmin, ActionManageRolePermissions, false},

		{RoleOrgAdmin, ActionManageTemplates, true},
		{RoleMember, ActionManageTemplates, false},
	}

	for _, tt := range tests {
		actor := Actor{UserID: "u1", Role: tt.role}
		assert.Equal(t, tt.allowed, CanPerform(actor, tt.action),
			"role=%s action=%s", tt.role, tt.action)
	}
}

func TestCanPerform_ReferentiallyTransparent(t *testing.T) {
	actor := Actor{UserID: "u1", Role: RoleInspector, HomeOrganizationID: "org-7"}
	first := CanPerform(actor, ActionCreateInspection)
	second := CanPerform(actor, ActionCreateInspection)
	assert.Equal(t, first, second)
	assert.True(t, first)
}

func TestCanEditRecord_CreatorException(t *testing.T) {
	rec := &fakeRecord{orgID: "org-1", creator: "u-creator"}

	creator := Actor{UserID: "u-creator", Role: RoleInspector}
	other := Actor{UserID: "u-other", Role: RoleInspector}
	orgAdmin := Actor{UserID: "u-admin", Role: RoleOrgAdmin}

	assert.True(t, CanEditRecord(creator, rec))
	assert.False(t, CanEditRecord(other, rec))
	assert.True(t, CanEditRecord(orgAdmin, rec))
}

func TestRoleFromString_UnknownFallsBackToMember(t *testing.T) {
	assert.Equal(t, RoleOrgAdmin, RoleFromString("org_admin"))
	assert.Equal(t, RoleMember, RoleFromString("superuser"))
	assert.Equal(t, RoleMember, RoleFromString(""))
}

func TestRoleValid(t *testing.T) {
	for _, r := range AllRoles() {
		assert.True(t, r.Valid(), "role %s", r)
	}
	assert.False(t, Role("root").Valid())
}
