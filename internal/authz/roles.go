// Package authz implements the authorization and visibility scoping engine for
// the inspection backend: which records an actor may see, whether a specific
// record may be mutated, and whether a privileged action is permitted at all.
//
// The package is stateless and safe for concurrent use. Permission checks never
// return errors for "access denied" — they return false or an empty scope, and
// the HTTP layer decides the response status. The only errors this package
// produces are ErrActorNotFound and ErrHierarchyCorruption.
package authz

// Role is the closed set of user roles. Roles are stored as strings in the
// users table; RoleFromString maps unknown values to RoleMember so a corrupted
// or stale role column degrades to the least privileged authenticated role
// rather than failing open.
type Role string

const (
	RoleSystemAdmin Role = "system_admin"
	RoleOrgAdmin    Role = "org_admin"
	RoleInspector   Role = "inspector"
	RoleMember      Role = "member"
	RoleClient      Role = "client" // read-only external viewer
)

// AllRoles returns every valid role.
func AllRoles() []Role {
	return []Role{RoleSystemAdmin, RoleOrgAdmin, RoleInspector, RoleMember, RoleClient}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleOrgAdmin, RoleInspector, RoleMember, RoleClient:
		return true
	}
	return false
}

// RoleFromString converts a persisted role string to a Role, falling back to
// RoleMember for unknown values.
func RoleFromString(s string) Role {
	r := Role(s)
	if !r.Valid() {
		return RoleMember
	}
	return r
}

// Action identifies a privileged operation that can be gated per role,
// independent of any specific record.
type Action string

const (
	ActionCreateOrganization    Action = "create_organization"
	ActionManageOrganization    Action = "manage_organization"
	ActionInviteUser            Action = "invite_user"
	ActionCreateInspection      Action = "create_inspection"
	ActionEditInspection        Action = "edit_inspection"
	ActionDeleteInspection      Action = "delete_inspection"
	ActionManageActionPlans     Action = "manage_action_plans"
	ActionManageTemplates       Action = "manage_templates"
	ActionManageRolePermissions Action = "manage_role_permissions"
	ActionExportData            Action = "export_data"
)

// capabilities maps each action to the roles that may ever perform it.
// Per-record checks (ownership, organization) are layered on top by the
// ScopeResolver; this table answers only "is this kind of action ever
// permitted for this role". Note that edit_inspection intentionally omits
// the creator case — the creator exception is record-scoped and therefore
// checked by the caller against the specific record.
var capabilities = map[Action]map[Role]bool{
	ActionCreateOrganization: {
		RoleSystemAdmin: true,
	},
	ActionManageOrganization: {
		RoleSystemAdmin: true,
		RoleOrgAdmin:    true,
	},
	ActionInviteUser: {
		RoleSystemAdmin: true,
		RoleOrgAdmin:    true,
	},
	ActionCreateInspection: {
		RoleSystemAdmin: true,
		RoleOrgAdmin:    true,
		RoleInspector:   true,
		RoleMember:      true,
	},
	ActionEditInspection: {
		RoleSystemAdmin: true,
		RoleOrgAdmin:    true,
	},
	ActionDeleteInspection: {
		RoleSystemAdmin: true,
		RoleOrgAdmin:    true,
	},
	ActionManageActionPlans: {
		RoleSystemAdmin: true,
		RoleOrgAdmin:    true,
		RoleInspector:   true,
		RoleMember:      true,
	},
	ActionManageTemplates: {
		RoleSystemAdmin: true,
		RoleOrgAdmin:    true,
	},
	ActionManageRolePermissions: {
		RoleSystemAdmin: true,
	},
	ActionExportData: {
		RoleSystemAdmin: true,
		RoleOrgAdmin:    true,
		RoleInspector:   true,
		RoleMember:      true,
	},
}

// CanPerform reports whether the actor's role ever permits the action.
// It is pure: no I/O, no record inspection, same result for the same input.
func CanPerform(actor Actor, action Action) bool {
	return capabilities[action][actor.Role]
}

// CanEditRecord reports whether the actor may edit the given record: either
// the role carries edit_inspection outright, or the actor created the record.
// This is the caller-side creator exception documented on the capability table.
func CanEditRecord(actor Actor, rec Record) bool {
	if CanPerform(actor, ActionEditInspection) {
		return true
	}
	return rec.CreatorID() == actor.UserID
}
