package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecord implements Record for tests (shared with roles_test.go).
type fakeRecord struct {
	orgID         string
	creator       string
	collaborators map[string]string // userID -> status
}

func (r *fakeRecord) OwningOrganizationID() string { return r.orgID }
func (r *fakeRecord) CreatorID() string            { return r.creator }
func (r *fakeRecord) HasActiveCollaborator(userID string) bool {
	return r.collaborators[userID] == "active"
}

func newTestResolver() *ScopeResolver {
	return NewScopeResolver(NewHierarchy(testTree()))
}

func TestResolveScope_SystemAdminUnrestricted(t *testing.T) {
	r := newTestResolver()

	// Regardless of home/managed organization.
	actors := []Actor{
		{UserID: "a1", Role: RoleSystemAdmin},
		{UserID: "a2", Role: RoleSystemAdmin, HomeOrganizationID: "C1"},
		{UserID: "a3", Role: RoleSystemAdmin, HomeOrganizationID: "P", ManagedOrganizationID: "P"},
	}
	for _, actor := range actors {
		scope, err := r.ResolveScope(context.Background(), actor, ResourceInspections, "")
		require.NoError(t, err)
		assert.True(t, scope.Unrestricted)
		assert.Empty(t, scope.RestrictToUserID)
	}
}

// Org admin managing P with direct children {C1, C2} and grandchild G1 under
// C1: the scope includes P, C1, C2 but excludes G1.
func TestResolveScope_OrgAdminDirectChildrenOnly(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u1", Role: RoleOrgAdmin, HomeOrganizationID: "P", ManagedOrganizationID: "P"}

	scope, err := r.ResolveScope(context.Background(), actor, ResourceInspections, "")
	require.NoError(t, err)

	assert.False(t, scope.Unrestricted)
	assert.ElementsMatch(t, []string{"P", "C1", "C2"}, scope.OrganizationIDs)
	assert.NotContains(t, scope.OrganizationIDs, "G1")
	assert.Empty(t, scope.RestrictToUserID, "org admins never get the collaboration fallback")
}

func TestResolveScope_OrgAdminWithoutManagedOrgFallsBackToHome(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u1", Role: RoleOrgAdmin, HomeOrganizationID: "C2"}

	scope, err := r.ResolveScope(context.Background(), actor, ResourceInspections, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"C2"}, scope.OrganizationIDs)
	assert.Empty(t, scope.RestrictToUserID)
}

func TestResolveScope_OrdinaryUserHomeOrgPlusCollaboration(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u7", Role: RoleInspector, HomeOrganizationID: "C1"}

	scope, err := r.ResolveScope(context.Background(), actor, ResourceInspections, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, scope.OrganizationIDs)
	assert.Equal(t, "u7", scope.RestrictToUserID)
}

// No organization at all: fail safe, not fail open.
func TestResolveScope_NoOrganizationEmptyScope(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u9", Role: RoleMember}

	scope, err := r.ResolveScope(context.Background(), actor, ResourceInspections, "")
	require.NoError(t, err)
	assert.True(t, scope.Empty())
}

// Hardened contract: an explicit organization filter outside the actor's reach
// resolves to the empty scope rather than leaking another tenant's records.
func TestResolveScope_ExplicitFilterRejectedWhenInaccessible(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u7", Role: RoleInspector, HomeOrganizationID: "C1"}

	scope, err := r.ResolveScope(context.Background(), actor, ResourceInspections, "C2")
	require.NoError(t, err)
	assert.True(t, scope.Empty())
}

func TestResolveScope_ExplicitFilterAcceptedWhenAccessible(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u1", Role: RoleOrgAdmin, ManagedOrganizationID: "P"}

	scope, err := r.ResolveScope(context.Background(), actor, ResourceInspections, "C1")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, scope.OrganizationIDs)
}

// Historical observed contract, pinned: the unchecked resolver narrows to the
// requested organization without validating access. ResolveScope is the
// hardened public path; this documents what the raw algorithm does.
func TestResolveScopeUnchecked_ExplicitFilterTrusted(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u7", Role: RoleInspector, HomeOrganizationID: "7"}

	scope, err := r.resolveScopeUnchecked(context.Background(), actor, "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, scope.OrganizationIDs)
	// The collaboration fallback still applies to ordinary roles.
	assert.Equal(t, "u7", scope.RestrictToUserID)
}

func TestCanAccessOrganization(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	sysAdmin := Actor{UserID: "a", Role: RoleSystemAdmin}
	orgAdmin := Actor{UserID: "b", Role: RoleOrgAdmin, ManagedOrganizationID: "P"}
	member := Actor{UserID: "c", Role: RoleMember, HomeOrganizationID: "C1"}
	orphan := Actor{UserID: "d", Role: RoleMember}

	tests := []struct {
		name  string
		actor Actor
		orgID string
		want  bool
	}{
		{"system admin anywhere", sysAdmin, "G1", true},
		{"org admin managed org", orgAdmin, "P", true},
		{"org admin direct child", orgAdmin, "C2", true},
		{"org admin grandchild denied", orgAdmin, "G1", false},
		{"member home org", member, "C1", true},
		{"member other org denied", member, "C2", false},
		{"orphan denied everywhere", orphan, "P", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := r.CanAccessOrganization(ctx, tt.actor, tt.orgID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

// A non-admin in the record's own organization who neither created it nor
// actively collaborates on it is denied.
func TestCanAccessRecord_SameOrgNotCollaboratorDenied(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u7", Role: RoleInspector, HomeOrganizationID: "C1"}
	rec := &fakeRecord{orgID: "C1", creator: "someone-else"}

	ok, err := r.CanAccessRecord(context.Background(), actor, rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Inactive collaboration denies; flipping the status to active grants access
// with no other state change.
func TestCanAccessRecord_CollaboratorStatusFlip(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u7", Role: RoleInspector, HomeOrganizationID: "C1"}
	rec := &fakeRecord{
		orgID:         "C1",
		creator:       "someone-else",
		collaborators: map[string]string{"u7": "inactive"},
	}
	ctx := context.Background()

	ok, err := r.CanAccessRecord(ctx, actor, rec)
	require.NoError(t, err)
	assert.False(t, ok)

	rec.collaborators["u7"] = "active"
	ok, err = r.CanAccessRecord(ctx, actor, rec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAccessRecord_Creator(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "u7", Role: RoleInspector, HomeOrganizationID: "C1"}
	rec := &fakeRecord{orgID: "C1", creator: "u7"}

	ok, err := r.CanAccessRecord(context.Background(), actor, rec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAccessRecord_SystemAdminAlwaysAllowed(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "a", Role: RoleSystemAdmin}
	rec := &fakeRecord{orgID: "G1", creator: "someone-else"}

	ok, err := r.CanAccessRecord(context.Background(), actor, rec)
	require.NoError(t, err)
	assert.True(t, ok)
}

// Org admins skip the collaboration fallback even for records they did not
// create, but organizational scope still applies.
func TestCanAccessRecord_OrgAdmin(t *testing.T) {
	r := newTestResolver()
	actor := Actor{UserID: "b", Role: RoleOrgAdmin, ManagedOrganizationID: "P"}
	ctx := context.Background()

	inChild := &fakeRecord{orgID: "C1", creator: "someone-else"}
	ok, err := r.CanAccessRecord(ctx, actor, inChild)
	require.NoError(t, err)
	assert.True(t, ok)

	inGrandchild := &fakeRecord{orgID: "G1", creator: "someone-else"}
	ok, err = r.CanAccessRecord(ctx, actor, inGrandchild)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVisibilityScope_Helpers(t *testing.T) {
	assert.True(t, VisibilityScope{}.Empty())
	assert.False(t, VisibilityScope{Unrestricted: true}.Empty())
	assert.True(t, VisibilityScope{Unrestricted: true}.AllowsOrganization("anything"))

	s := VisibilityScope{OrganizationIDs: []string{"a", "b"}}
	assert.True(t, s.AllowsOrganization("b"))
	assert.False(t, s.AllowsOrganization("c"))
}
