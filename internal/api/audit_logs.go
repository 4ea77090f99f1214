// audit_logs.go implements the audit log review endpoints. They are
// route-gated to manage_role_permissions, the system-admin-only capability,
// so the audit trail never leaks across tenants.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/db/repositories"
)

// AuditHandlers implements the audit log endpoints.
type AuditHandlers struct {
	audits *repositories.AuditRepository
}

// NewAuditHandlers creates audit log handlers.
func NewAuditHandlers(audits *repositories.AuditRepository) *AuditHandlers {
	return &AuditHandlers{audits: audits}
}

// List returns audit log entries, newest first, with optional filters:
// user_id, organization_id, action, start_date, end_date (RFC3339).
func (h *AuditHandlers) List(c *gin.Context) {
	limit, offset := pagination(c)

	var filters repositories.AuditFilters
	if v := c.Query("user_id"); v != "" {
		filters.UserID = &v
	}
	if v := c.Query("organization_id"); v != "" {
		filters.OrganizationID = &v
	}
	if v := c.Query("action"); v != "" {
		filters.Action = &v
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be RFC3339"})
			return
		}
		filters.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be RFC3339"})
			return
		}
		filters.EndDate = &t
	}

	logs, total, err := h.audits.ListAuditLogs(c.Request.Context(), filters, limit, offset)
	if err != nil {
		slog.Error("failed to list audit logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"audit_logs": logs,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// Get returns one audit log entry.
func (h *AuditHandlers) Get(c *gin.Context) {
	entry, err := h.audits.GetAuditLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("failed to load audit log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit log"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit log entry not found"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
