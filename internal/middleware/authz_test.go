package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/authz"
)

// runWithActor performs a request through the given middleware chain with an
// optional actor preloaded into the context.
func runWithActor(t *testing.T, actor *authz.Actor, handlers ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)

	if actor != nil {
		r.Use(func(c *gin.Context) {
			c.Set(ActorKey, *actor)
			c.Set(UserIDKey, actor.UserID)
		})
	}
	r.Use(handlers...)
	r.GET("/probe", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/probe", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAction_Allowed(t *testing.T) {
	actor := &authz.Actor{UserID: "u1", Role: authz.RoleInspector, HomeOrganizationID: "org-1"}
	w := runWithActor(t, actor, RequireAction(authz.ActionCreateInspection))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireAction_Denied(t *testing.T) {
	actor := &authz.Actor{UserID: "u1", Role: authz.RoleClient, HomeOrganizationID: "org-1"}
	w := runWithActor(t, actor, RequireAction(authz.ActionCreateInspection))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequireAction_NoActor(t *testing.T) {
	w := runWithActor(t, nil, RequireAction(authz.ActionCreateInspection))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequireAction_AdminOnlyAction(t *testing.T) {
	tests := []struct {
		role authz.Role
		want int
	}{
		{authz.RoleSystemAdmin, http.StatusOK},
		{authz.RoleOrgAdmin, http.StatusForbidden},
		{authz.RoleInspector, http.StatusForbidden},
		{authz.RoleMember, http.StatusForbidden},
		{authz.RoleClient, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			actor := &authz.Actor{UserID: "u1", Role: tt.role}
			w := runWithActor(t, actor, RequireAction(authz.ActionCreateOrganization))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireAnyAction(t *testing.T) {
	actor := &authz.Actor{UserID: "u1", Role: authz.RoleOrgAdmin, ManagedOrganizationID: "org-1"}
	w := runWithActor(t, actor, RequireAnyAction(authz.ActionCreateOrganization, authz.ActionInviteUser))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	client := &authz.Actor{UserID: "u2", Role: authz.RoleClient}
	w = runWithActor(t, client, RequireAnyAction(authz.ActionCreateOrganization, authz.ActionInviteUser))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
