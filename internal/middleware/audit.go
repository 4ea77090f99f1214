// audit.go provides Gin middleware that records authenticated write operations
// to the audit log, with optional shipping to external audit destinations.
package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/audit"
	"github.com/safesite-hq/safesite/internal/config"
	"github.com/safesite-hq/safesite/internal/db/models"
	"github.com/safesite-hq/safesite/internal/db/repositories"
	"github.com/safesite-hq/safesite/internal/safego"
)

// AuditMiddleware logs authenticated actions to the database only
func AuditMiddleware(auditRepo *repositories.AuditRepository) gin.HandlerFunc {
	return AuditMiddlewareWithShipper(auditRepo, nil, nil)
}

// AuditMiddlewareWithShipper logs authenticated actions and ships to external
// destinations
func AuditMiddlewareWithShipper(auditRepo *repositories.AuditRepository, shipper audit.Shipper, auditCfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request first
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		logReadOps := auditCfg != nil && auditCfg.LogReadOperations
		logFailedReqs := auditCfg != nil && auditCfg.LogFailedRequests

		isReadOp := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		// Default behavior: only log successful write operations
		if auditCfg == nil {
			if isReadOp || isFailed {
				return
			}
		} else {
			if isReadOp && !logReadOps {
				return
			}
			if isFailed && !logFailedReqs {
				return
			}
		}

		path := c.Request.URL.Path
		action := auditAction(c.Request.Method, path)
		resourceType := auditResourceType(path)
		ipAddress := c.ClientIP()
		statusCode := c.Writer.Status()

		entry := &models.AuditLog{
			Action:     action,
			IPAddress:  &ipAddress,
			StatusCode: statusCode,
		}
		if resourceType != "" {
			entry.ResourceType = &resourceType
		}
		if id := c.Param("id"); id != "" {
			resourceID := id
			entry.ResourceID = &resourceID
		}

		var userID, orgID string
		if actor, ok := ActorFromContext(c); ok {
			userID = actor.UserID
			entry.UserID = &userID
			if actor.HomeOrganizationID != "" {
				orgID = actor.HomeOrganizationID
				entry.OrganizationID = &orgID
			}
		}

		requestID, _ := c.Get(RequestIDKey)
		requestIDStr, _ := requestID.(string)

		// Async log creation (non-blocking)
		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if auditRepo != nil {
				if err := auditRepo.Insert(ctx, entry); err != nil {
					slog.Error("failed to write audit log", "error", err)
				}
			}

			if shipper != nil {
				shipped := &audit.LogEntry{
					Timestamp:      time.Now(),
					Action:         action,
					UserID:         userID,
					OrganizationID: orgID,
					ResourceType:   resourceType,
					IPAddress:      ipAddress,
					RequestID:      requestIDStr,
					StatusCode:     statusCode,
				}
				if entry.ResourceID != nil {
					shipped.ResourceID = *entry.ResourceID
				}
				if err := shipper.Ship(ctx, shipped); err != nil {
					slog.Error("failed to ship audit log", "error", err)
				}
			}
		})
	}
}

// auditResourceType maps a request path to the resource it touches
func auditResourceType(path string) string {
	switch {
	case strings.Contains(path, "/inspections"):
		return "inspection"
	case strings.Contains(path, "/action-items"):
		return "action_item"
	case strings.Contains(path, "/templates"):
		return "checklist_template"
	case strings.Contains(path, "/organizations"):
		return "organization"
	case strings.Contains(path, "/users"):
		return "user"
	case strings.Contains(path, "/sessions"):
		return "session"
	default:
		return ""
	}
}

// auditAction renders a compact action name for the entry. Collaborator and
// invite sub-resources get their own names so the log stays searchable.
func auditAction(method, path string) string {
	resource := auditResourceType(path)
	if resource == "" {
		return method + " " + path
	}

	switch {
	case strings.Contains(path, "/collaborators"):
		return "inspection.collaborator_updated"
	case strings.Contains(path, "/invite"):
		return "organization.user_invited"
	case strings.Contains(path, "/export"):
		return resource + ".exported"
	}

	switch method {
	case "POST":
		return resource + ".created"
	case "PUT", "PATCH":
		return resource + ".updated"
	case "DELETE":
		return resource + ".deleted"
	default:
		return resource + ".read"
	}
}
