// templates.go implements the checklist template handlers. Templates are
// organization-owned; management is route-gated to manage_templates and
// scoped to organizations the actor can reach.
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

// TemplateHandlers implements the checklist template endpoints.
type TemplateHandlers struct {
	templates *repositories.ChecklistTemplateRepository
	scopes    *authz.ScopeResolver
}

// NewTemplateHandlers creates template handlers.
func NewTemplateHandlers(templates *repositories.ChecklistTemplateRepository, scopes *authz.ScopeResolver) *TemplateHandlers {
	return &TemplateHandlers{templates: templates, scopes: scopes}
}

// List returns active templates visible to the actor.
func (h *TemplateHandlers) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	scope, err := h.scopes.ResolveScope(c.Request.Context(), actor, authz.ResourceTemplates, c.Query("organization_id"))
	if err != nil {
		slog.Error("failed to resolve template scope", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list templates"})
		return
	}

	templates, err := h.templates.List(c.Request.Context(), scope)
	if err != nil {
		slog.Error("failed to list templates", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list templates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// Get returns one template. Out-of-scope templates are reported as not found.
func (h *TemplateHandlers) Get(c *gin.Context) {
	t, ok := h.loadAccessible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t)
}

type templateRequest struct {
	Name           string                `json:"name" binding:"required"`
	OrganizationID string                `json:"organization_id"`
	Items          []models.TemplateItem `json:"items"`
}

// Create creates a checklist template in the actor's organization, or in an
// explicitly named one the actor can access.
func (h *TemplateHandlers) Create(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template name is required"})
		return
	}

	orgID := req.OrganizationID
	if orgID == "" {
		orgID = actor.HomeOrganizationID
		if orgID == "" {
			orgID = actor.ManagedOrganizationID
		}
	}
	if orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization_id is required"})
		return
	}

	allowed, err := h.scopes.CanAccessOrganization(c.Request.Context(), actor, orgID)
	if err != nil {
		slog.Error("organization access check failed", "org_id", orgID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create template"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot create templates in this organization"})
		return
	}

	t := &models.ChecklistTemplate{
		OrganizationID: orgID,
		CreatedBy:      actor.UserID,
		Name:           req.Name,
		Items:          req.Items,
	}
	if err := h.templates.Create(c.Request.Context(), t); err != nil {
		slog.Error("failed to create template", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create template"})
		return
	}

	c.JSON(http.StatusCreated, t)
}

// Update edits a template's name and items.
func (h *TemplateHandlers) Update(c *gin.Context) {
	t, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template name is required"})
		return
	}

	t.Name = req.Name
	t.Items = req.Items
	if err := h.templates.Update(c.Request.Context(), t); err != nil {
		slog.Error("failed to update template", "template_id", t.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update template"})
		return
	}

	c.JSON(http.StatusOK, t)
}

// Deactivate retires a template. Inspections that referenced it keep their
// reference; the template stops appearing in listings.
func (h *TemplateHandlers) Deactivate(c *gin.Context) {
	t, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	if err := h.templates.Deactivate(c.Request.Context(), t.ID); err != nil {
		slog.Error("failed to deactivate template", "template_id", t.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate template"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func (h *TemplateHandlers) loadAccessible(c *gin.Context) (*models.ChecklistTemplate, bool) {
	actor, _ := middleware.ActorFromContext(c)
	id := c.Param("id")

	t, err := h.templates.GetByID(c.Request.Context(), id)
	if err != nil {
		slog.Error("failed to load template", "template_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load template"})
		return nil, false
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return nil, false
	}

	allowed, err := h.scopes.CanAccessRecord(c.Request.Context(), actor, t)
	if err != nil {
		slog.Error("template access check failed", "template_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load template"})
		return nil, false
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return nil, false
	}

	return t, true
}
