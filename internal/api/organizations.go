// organizations.go implements the organization handlers: tree CRUD, member
// listing, and user invitation. Capability gates (create_organization,
// manage_organization, invite_user) are enforced at the route level;
// organization-scope checks happen here because they need the target ID.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/db/models"
	"github.com/safesite-hq/safesite/internal/db/repositories"
	"github.com/safesite-hq/safesite/internal/middleware"
)

// OrganizationHandlers implements the organization endpoints.
type OrganizationHandlers struct {
	orgs      *repositories.OrganizationRepository
	users     *repositories.UserRepository
	hierarchy *authz.Hierarchy
	scopes    *authz.ScopeResolver
}

// NewOrganizationHandlers creates organization handlers.
func NewOrganizationHandlers(
	orgs *repositories.OrganizationRepository,
	users *repositories.UserRepository,
	hierarchy *authz.Hierarchy,
	scopes *authz.ScopeResolver,
) *OrganizationHandlers {
	return &OrganizationHandlers{orgs: orgs, users: users, hierarchy: hierarchy, scopes: scopes}
}

// List returns the organizations visible to the actor: everything for system
// admins, the managed organization and its direct children for org admins,
// the home organization for everyone else.
func (h *OrganizationHandlers) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	if actor.Role == authz.RoleSystemAdmin {
		orgs, err := h.orgs.ListAll(c.Request.Context())
		if err != nil {
			slog.Error("failed to list organizations", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list organizations"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"organizations": orgs})
		return
	}

	scope, err := h.scopes.ResolveScope(c.Request.Context(), actor, authz.ResourceOrganizations, "")
	if err != nil {
		slog.Error("failed to resolve organization scope", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list organizations"})
		return
	}

	orgs, err := h.orgs.ListByIDs(c.Request.Context(), scope.OrganizationIDs)
	if err != nil {
		slog.Error("failed to list organizations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list organizations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// Get returns one organization. An organization outside the actor's reach is
// reported as not found, not as forbidden: its existence is not disclosed.
func (h *OrganizationHandlers) Get(c *gin.Context) {
	org, ok := h.loadAccessible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, org)
}

// Tree returns the full descendant subtree rooted at the organization,
// inclusive of the root. This is the call site that wants Descendants rather
// than DirectChildren: reporting rollups cover the whole subtree even though
// org-admin visibility scope does not.
func (h *OrganizationHandlers) Tree(c *gin.Context) {
	org, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	ids, err := h.hierarchy.Descendants(c.Request.Context(), org.ID)
	if err != nil {
		slog.Error("failed to expand organization tree", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load organization tree"})
		return
	}

	orgs, err := h.orgs.ListByIDs(c.Request.Context(), ids)
	if err != nil {
		slog.Error("failed to load organization tree", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load organization tree"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"root": org.ID, "organizations": orgs})
}

// Children returns the organization's active direct children.
func (h *OrganizationHandlers) Children(c *gin.Context) {
	org, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	ids, err := h.hierarchy.DirectChildren(c.Request.Context(), org.ID)
	if err != nil {
		slog.Error("failed to list children", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list children"})
		return
	}

	orgs, err := h.orgs.ListByIDs(c.Request.Context(), ids)
	if err != nil {
		slog.Error("failed to list children", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list children"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// Members lists the users whose home organization is the target.
func (h *OrganizationHandlers) Members(c *gin.Context) {
	org, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	users, err := h.users.ListByOrganization(c.Request.Context(), org.ID)
	if err != nil {
		slog.Error("failed to list members", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": users})
}

type createOrganizationRequest struct {
	Name                 string  `json:"name" binding:"required"`
	ParentOrganizationID *string `json:"parent_organization_id"`
}

// Create creates an organization, optionally as a child of an existing one.
// Route-gated to create_organization (system admin only).
func (h *OrganizationHandlers) Create(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Organization name is required"})
		return
	}

	if req.ParentOrganizationID != nil {
		parent, err := h.orgs.GetByID(c.Request.Context(), *req.ParentOrganizationID)
		if err != nil {
			slog.Error("failed to load parent organization", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organization"})
			return
		}
		if parent == nil || !parent.IsActive {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parent organization not found or inactive"})
			return
		}
	}

	org := &models.Organization{
		Name:                 req.Name,
		ParentOrganizationID: req.ParentOrganizationID,
	}
	if err := h.orgs.Create(c.Request.Context(), org); err != nil {
		slog.Error("failed to create organization", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organization"})
		return
	}

	// The parent's cached child set is now stale.
	if req.ParentOrganizationID != nil {
		h.hierarchy.Invalidate(c.Request.Context(), *req.ParentOrganizationID)
	}

	slog.Info("organization created", "org_id", org.ID, "name", org.Name)
	c.JSON(http.StatusCreated, org)
}

type updateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

// Update renames an organization.
func (h *OrganizationHandlers) Update(c *gin.Context) {
	org, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	var req updateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Organization name is required"})
		return
	}

	org.Name = req.Name
	if err := h.orgs.Update(c.Request.Context(), org); err != nil {
		slog.Error("failed to update organization", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update organization"})
		return
	}

	c.JSON(http.StatusOK, org)
}

// Deactivate soft-deletes an organization. Records it owns keep referencing
// the inactive row; the hierarchy index stops expanding into it.
func (h *OrganizationHandlers) Deactivate(c *gin.Context) {
	org, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	if err := h.orgs.Deactivate(c.Request.Context(), org.ID); err != nil {
		slog.Error("failed to deactivate organization", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate organization"})
		return
	}

	h.hierarchy.Invalidate(c.Request.Context(), org.ID)
	if org.ParentOrganizationID != nil {
		h.hierarchy.Invalidate(c.Request.Context(), *org.ParentOrganizationID)
	}

	slog.Info("organization deactivated", "org_id", org.ID)
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

type inviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

// Invite provisions a user into the organization. Org admins may invite into
// their managed organization and its direct children; only system admins may
// grant the system_admin role.
func (h *OrganizationHandlers) Invite(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	org, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, name, and role are required"})
		return
	}

	role := authz.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}
	if role == authz.RoleSystemAdmin && actor.Role != authz.RoleSystemAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only system admins may grant the system_admin role"})
		return
	}

	existing, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		slog.Error("failed to check existing user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invite user"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "A user with this email already exists"})
		return
	}

	user := &models.User{
		Email:          req.Email,
		Name:           req.Name,
		Role:           string(role),
		OrganizationID: &org.ID,
	}
	if role == authz.RoleOrgAdmin {
		user.ManagedOrganizationID = &org.ID
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		slog.Error("failed to invite user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invite user"})
		return
	}

	slog.Info("user invited", "user_id", user.ID, "org_id", org.ID, "role", user.Role, "invited_by", actor.UserID)
	c.JSON(http.StatusCreated, user)
}

// loadAccessible loads the target organization and verifies the actor may
// reach it. It writes the error response itself and returns ok=false on any
// failure. Unreachable and nonexistent organizations are indistinguishable.
func (h *OrganizationHandlers) loadAccessible(c *gin.Context) (*models.Organization, bool) {
	actor, _ := middleware.ActorFromContext(c)
	id := c.Param("id")

	allowed, err := h.scopes.CanAccessOrganization(c.Request.Context(), actor, id)
	if err != nil {
		slog.Error("organization access check failed", "org_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load organization"})
		return nil, false
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return nil, false
	}

	org, err := h.orgs.GetByID(c.Request.Context(), id)
	if err != nil {
		slog.Error("failed to load organization", "org_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load organization"})
		return nil, false
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return nil, false
	}

	return org, true
}
