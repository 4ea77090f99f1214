// action_items.go implements the action item handlers. Action items inherit
// their owning organization from the parent inspection; the assignee plays
// the collaborator role in the visibility model.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/db/models"
	"github.com/safesite-hq/safesite/internal/db/repositories"
	"github.com/safesite-hq/safesite/internal/middleware"
)

// ActionItemHandlers implements the action item endpoints.
type ActionItemHandlers struct {
	items       *repositories.ActionItemRepository
	inspections *repositories.InspectionRepository
	scopes      *authz.ScopeResolver
}

// NewActionItemHandlers creates action item handlers.
func NewActionItemHandlers(
	items *repositories.ActionItemRepository,
	inspections *repositories.InspectionRepository,
	scopes *authz.ScopeResolver,
) *ActionItemHandlers {
	return &ActionItemHandlers{items: items, inspections: inspections, scopes: scopes}
}

// List returns action items visible to the actor, soonest due first.
func (h *ActionItemHandlers) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	limit, offset := pagination(c)

	scope, err := h.scopes.ResolveScope(c.Request.Context(), actor, authz.ResourceActionItems, c.Query("organization_id"))
	if err != nil {
		slog.Error("failed to resolve action item scope", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list action items"})
		return
	}

	items, err := h.items.List(c.Request.Context(), scope, limit, offset)
	if err != nil {
		slog.Error("failed to list action items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list action items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"action_items": items, "limit": limit, "offset": offset})
}

// ListByInspection returns all action items of one inspection. Access is
// checked on the parent inspection; items are not individually re-filtered.
func (h *ActionItemHandlers) ListByInspection(c *gin.Context) {
	inspection, ok := h.loadAccessibleInspection(c)
	if !ok {
		return
	}

	items, err := h.items.ListByInspection(c.Request.Context(), inspection.ID)
	if err != nil {
		slog.Error("failed to list action items", "inspection_id", inspection.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list action items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"action_items": items})
}

// Get returns one action item. Out-of-scope records are reported as not found.
func (h *ActionItemHandlers) Get(c *gin.Context) {
	item, ok := h.loadAccessible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, item)
}

type createActionItemRequest struct {
	Description string     `json:"description" binding:"required"`
	AssignedTo  *string    `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
}

// Create raises an action item under an inspection. The owning organization is
// copied from the parent inspection and is immutable thereafter.
func (h *ActionItemHandlers) Create(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	inspection, ok := h.loadAccessibleInspection(c)
	if !ok {
		return
	}

	var req createActionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Description is required"})
		return
	}

	item := &models.ActionItem{
		InspectionID:   inspection.ID,
		OrganizationID: inspection.OrganizationID,
		CreatedBy:      actor.UserID,
		AssignedTo:     req.AssignedTo,
		Description:    req.Description,
		DueDate:        req.DueDate,
	}
	if err := h.items.Create(c.Request.Context(), item); err != nil {
		slog.Error("failed to create action item", "inspection_id", inspection.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create action item"})
		return
	}

	c.JSON(http.StatusCreated, item)
}

type updateActionItemRequest struct {
	Description *string    `json:"description"`
	AssignedTo  *string    `json:"assigned_to"`
	Status      *string    `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// Update edits an action item.
func (h *ActionItemHandlers) Update(c *gin.Context) {
	item, ok := h.loadAccessible(c)
	if !ok {
		return
	}

	var req updateActionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.AssignedTo != nil {
		item.AssignedTo = req.AssignedTo
	}
	if req.DueDate != nil {
		item.DueDate = req.DueDate
	}
	if req.Status != nil {
		if !validActionItemStatus(*req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
			return
		}
		item.Status = *req.Status
	}

	if err := h.items.Update(c.Request.Context(), item); err != nil {
		slog.Error("failed to update action item", "action_item_id", item.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update action item"})
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *ActionItemHandlers) loadAccessible(c *gin.Context) (*models.ActionItem, bool) {
	actor, _ := middleware.ActorFromContext(c)
	id := c.Param("id")

	item, err := h.items.GetByID(c.Request.Context(), id)
	if err != nil {
		slog.Error("failed to load action item", "action_item_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load action item"})
		return nil, false
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Action item not found"})
		return nil, false
	}

	allowed, err := h.scopes.CanAccessRecord(c.Request.Context(), actor, item)
	if err != nil {
		slog.Error("action item access check failed", "action_item_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load action item"})
		return nil, false
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Action item not found"})
		return nil, false
	}

	return item, true
}

// loadAccessibleInspection resolves the :id route parameter as an inspection
// and checks record access, for the nested action-item routes.
func (h *ActionItemHandlers) loadAccessibleInspection(c *gin.Context) (*models.Inspection, bool) {
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

func validActionItemStatus(s string) bool {
	switch s {
	case models.ActionItemStatusOpen, models.ActionItemStatusInProgress, models.ActionItemStatusResolved:
		return true
	}
	return false
}
