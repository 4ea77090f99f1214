// inspections.go implements the inspection handlers. Listing goes through the
// visibility scope resolver; single-record reads and every mutation consult
// CanAccessRecord on the loaded record, and edits additionally apply the
// creator exception via CanEditRecord.
package api

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/db/models"
	"github.com/safesite-hq/safesite/internal/db/repositories"
	"github.com/safesite-hq/safesite/internal/middleware"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// InspectionHandlers implements the inspection endpoints.
type InspectionHandlers struct {
	inspections *repositories.InspectionRepository
	users       *repositories.UserRepository
	scopes      *authz.ScopeResolver
}

// NewInspectionHandlers creates inspection handlers.
func NewInspectionHandlers(
	inspections *repositories.InspectionRepository,
	users *repositories.UserRepository,
	scopes *authz.ScopeResolver,
) *InspectionHandlers {
	return &InspectionHandlers{inspections: inspections, users: users, scopes: scopes}
}

// pagination reads limit/offset query parameters with clamped defaults.
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns inspections visible to the actor. An explicit organization_id
// filter narrows the scope only after the resolver confirms the actor may
// access that organization; a filter outside the actor's reach yields an
// empty page, not an error.
func (h *InspectionHandlers) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	limit, offset := pagination(c)

	scope, err := h.scopes.ResolveScope(c.Request.Context(), actor, authz.ResourceInspections, c.Query("organization_id"))
	if err != nil {
		slog.Error("failed to resolve inspection scope", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list inspections"})
		return
	}

	inspections, err := h.inspections.List(c.Request.Context(), scope, limit, offset)
	if err != nil {
		slog.Error("failed to list inspections", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list inspections"})
		return
	}

	total, err := h.inspections.Count(c.Request.Context(), scope)
	if err != nil {
		slog.Error("failed to count inspections", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list inspections"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"inspections": inspections,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// Get returns one inspection with its collaborators. Out-of-scope records are
// reported as not found.
func (h *InspectionHandlers) Get(c *gin.Context) {
	inspection, ok := h.loadAccessible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, inspection)
}

type createInspectionRequest struct {
	Title          string     `json:"title" binding:"required"`
	OrganizationID string     `json:"organization_id"`
	TemplateID     *string    `json:"template_id"`
	ScheduledFor   *time.Time `json:"scheduled_for"`
}

// Create creates an inspection. The owning organization defaults to the
// actor's home organization; an explicit one must pass the organization
// access check (this is how admins create inspections in subsidiaries).
func (h *InspectionHandlers) Create(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req createInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
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
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create inspection"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot create inspections in this organization"})
		return
	}

	inspection := &models.Inspection{
		OrganizationID: orgID,
		CreatedBy:      actor.UserID,
		TemplateID:     req.TemplateID,
		Title:          req.Title,
		ScheduledFor:   req.ScheduledFor,
	}
	if err := h.inspections.Create(c.Request.Context(), inspection); err != nil {
		slog.Error("failed to create inspection", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create inspection"})
		return
	}

	c.JSON(http.StatusCreated, inspection)
}

type updateInspectionRequest struct {
	Title        *string    `json:"title"`
	Status       *string    `json:"status"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

// Update edits an inspection. Editing requires either the edit_inspection
// capability or being the record's creator; organizational scope applies in
// both cases.
func (h *InspectionHandlers) Update(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	inspection, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	if !authz.CanEditRecord(actor, inspection) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions to edit this inspection"})
		return
	}

	var req updateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Title != nil {
		inspection.Title = *req.Title
	}
	if req.ScheduledFor != nil {
		inspection.ScheduledFor = req.ScheduledFor
	}
	if req.Status != nil {
		if !validInspectionStatus(*req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
			return
		}
		inspection.Status = *req.Status
		if *req.Status == models.InspectionStatusCompleted && inspection.CompletedAt == nil {
			now := time.Now().UTC()
			inspection.CompletedAt = &now
		}
	}

	if err := h.inspections.Update(c.Request.Context(), inspection); err != nil {
		slog.Error("failed to update inspection", "inspection_id", inspection.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update inspection"})
		return
	}

	c.JSON(http.StatusOK, inspection)
}

// Delete removes an inspection and its dependents. Route-gated to
// delete_inspection (admin roles); the record must also be inside the actor's
// organizational scope.
func (h *InspectionHandlers) Delete(c *gin.Context) {
	inspection, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	if err := h.inspections.Delete(c.Request.Context(), inspection.ID); err != nil {
		slog.Error("failed to delete inspection", "inspection_id", inspection.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete inspection"})
		return
	}

	slog.Info("inspection deleted", "inspection_id", inspection.ID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type collaboratorRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpsertCollaborator adds a collaborator to an inspection or changes their
// status. Granting or revoking collaboration is an edit of the record, so the
// same edit rules apply.
func (h *InspectionHandlers) UpsertCollaborator(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	inspection, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	if !authz.CanEditRecord(actor, inspection) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions to manage collaborators"})
		return
	}

	var req collaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}
	if req.Status != models.CollaboratorActive && req.Status != models.CollaboratorInactive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be active or inactive"})
		return
	}

	targetID := c.Param("user_id")
	target, err := h.users.GetUserByID(c.Request.Context(), targetID)
	if err != nil {
		slog.Error("failed to load collaborator", "user_id", targetID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update collaborator"})
		return
	}
	if target == nil || !target.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := h.inspections.UpsertCollaborator(c.Request.Context(), inspection.ID, targetID, req.Status); err != nil {
		slog.Error("failed to upsert collaborator", "inspection_id", inspection.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update collaborator"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"inspection_id": inspection.ID,
		"user_id":       targetID,
		"status":        req.Status,
	})
}

// Export streams the actor's visible inspections as CSV. The export honors
// exactly the same scope as List: nothing leaves the system that the actor
// could not already page through.
func (h *InspectionHandlers) Export(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	scope, err := h.scopes.ResolveScope(c.Request.Context(), actor, authz.ResourceInspections, c.Query("organization_id"))
	if err != nil {
		slog.Error("failed to resolve export scope", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export inspections"})
		return
	}

	inspections, err := h.inspections.List(c.Request.Context(), scope, maxPageSize*10, 0)
	if err != nil {
		slog.Error("failed to export inspections", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export inspections"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="inspections.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"id", "organization_id", "title", "status", "created_by", "scheduled_for", "completed_at", "created_at"})
	for _, in := range inspections {
		row := []string{
			in.ID, in.OrganizationID, in.Title, in.Status, in.CreatedBy,
			formatTimePtr(in.ScheduledFor), formatTimePtr(in.CompletedAt),
			in.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			slog.Error("failed to write export row", "error", err)
			return
		}
	}
	w.Flush()
}

// loadAccessible loads the target inspection and verifies the actor may
// access it. Out-of-scope and nonexistent records both yield 404.
func (h *InspectionHandlers) loadAccessible(c *gin.Context) (*models.Inspection, bool) {
	actor, _ := middleware.ActorFromContext(c)
	id := c.Param("id")

	inspection, err := h.inspections.GetByID(c.Request.Context(), id)
	if err != nil {
		slog.Error("failed to load inspection", "inspection_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load inspection"})
		return nil, false
	}
	if inspection == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Inspection not found"})
		return nil, false
	}

	allowed, err := h.scopes.CanAccessRecord(c.Request.Context(), actor, inspection)
	if err != nil {
		slog.Error("inspection access check failed", "inspection_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load inspection"})
		return nil, false
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Inspection not found"})
		return nil, false
	}

	return inspection, true
}

func validInspectionStatus(s string) bool {
	switch s {
	case models.InspectionStatusDraft, models.InspectionStatusScheduled,
		models.InspectionStatusInProgress, models.InspectionStatusCompleted:
		return true
	}
	return false
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
