// authz.go implements capability-based authorization middleware.
//
// Capabilities are checked at request time against the actor resolved by
// AuthMiddleware rather than being embedded in the JWT. This is a deliberate
// design choice: when a user's role changes, the change takes effect on their
// next request without needing to invalidate or reissue their token.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/telemetry"
)

// RequireAction rejects the request with 403 unless the resolved actor's role
// grants the named action.
func RequireAction(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		if !authz.CanPerform(actor, action) {
			telemetry.AuthzDecisionsTotal.WithLabelValues(string(action), "deny").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Missing required permission",
				"details": "Required permission: " + string(action),
			})
			return
		}

		telemetry.AuthzDecisionsTotal.WithLabelValues(string(action), "allow").Inc()
		c.Next()
	}
}

// RequireAnyAction rejects the request unless the actor's role grants at
// least one of the named actions.
func RequireAnyAction(actions ...authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		for _, action := range actions {
			if authz.CanPerform(actor, action) {
				telemetry.AuthzDecisionsTotal.WithLabelValues(string(action), "allow").Inc()
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Missing required permission",
		})
	}
}
