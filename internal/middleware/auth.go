// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Authz → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB
// work. Auth populates the resolved actor; the authorization middleware reads
// from that context. Audit logging runs last so only requests that cleared
// authorization are recorded as successful actions.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/auth"
	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/db/repositories"
	"github.com/safesite-hq/safesite/internal/safego"
	"github.com/safesite-hq/safesite/internal/telemetry"
)

const (
	// ActorKey is the gin.Context key holding the resolved authz.Actor.
	ActorKey = "actor"
	// UserIDKey is the gin.Context key holding the authenticated user ID.
	UserIDKey = "user_id"
)

// ActorFromContext retrieves the actor resolved by AuthMiddleware.
func ActorFromContext(c *gin.Context) (authz.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return authz.Actor{}, false
	}
	actor, ok := v.(authz.Actor)
	return actor, ok
}

// AuthMiddleware validates the bearer JWT and resolves the caller into an
// Actor. When the resolver signals that the bootstrap identity needs its
// persisted role corrected, the promotion runs asynchronously; the request
// itself already carries the promoted role.
func AuthMiddleware(resolver *authz.ActorResolver, userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		actor, promote, err := resolver.ResolveActor(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, authz.ErrActorNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "User not found or deactivated",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to resolve user",
			})
			return
		}

		if promote {
			// Persistence correction for the bootstrap identity. Fire-and-forget:
			// the in-flight request already acts as system admin, and the update
			// is idempotent so concurrent requests are harmless.
			userID := actor.UserID
			safego.Go(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				changed, err := userRepo.PromoteToSystemAdmin(ctx, userID)
				if err != nil {
					slog.Error("bootstrap promotion failed", "user_id", userID, "error", err)
					return
				}
				if changed {
					telemetry.BootstrapPromotionsTotal.Inc()
					slog.Info("bootstrap identity promoted to system admin", "user_id", userID)
				}
			})
		}

		c.Set(ActorKey, actor)
		c.Set(UserIDKey, actor.UserID)
		if actor.HomeOrganizationID != "" {
			c.Set("organization_id", actor.HomeOrganizationID)
		}

		c.Next()
	}
}
