// Package api wires together all HTTP routes for the SafeSite backend.
//
// Route grouping philosophy:
//   - /health, /ready, and /version are unauthenticated so load balancers and
//     orchestrators can probe the service without credentials.
//   - Session endpoints (/v1/sessions) are unauthenticated but carry a stricter
//     rate limit: they are the brute-force surface.
//   - Everything else requires a bearer token. Role capability gates are
//     declared per route with middleware.RequireAction; record-level and
//     organization-scope checks happen inside the handlers because they need
//     the loaded record.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/safesite-hq/safesite/internal/audit"
	"github.com/safesite-hq/safesite/internal/auth/oidc"
	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/config"
	"github.com/safesite-hq/safesite/internal/db/repositories"
	"github.com/safesite-hq/safesite/internal/jobs"
	"github.com/safesite-hq/safesite/internal/middleware"
)

// BackgroundServices holds references to background jobs and resources that
// must be stopped during graceful shutdown. The caller (cmd/server) calls
// Shutdown() after the HTTP server has drained.
type BackgroundServices struct {
	overdueNotifier *jobs.OverdueNotifier
	rateLimiters    []middleware.Limiter
}

// Shutdown stops all background goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.overdueNotifier != nil {
		bg.overdueNotifier.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. rdb may be nil; when set it
// backs the hierarchy cache and distributed rate limiting.
func NewRouter(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	inspectionRepo := repositories.NewInspectionRepository(db)
	actionItemRepo := repositories.NewActionItemRepository(db)
	templateRepo := repositories.NewChecklistTemplateRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Authorization engine. The hierarchy index reads the organization tree
	// through the repository; Redis, when available, absorbs the
	// direct-children query with a short TTL.
	var hierarchy *authz.Hierarchy
	if rdb != nil {
		hierarchy = authz.NewCachedHierarchy(orgRepo, rdb, cfg.Redis.HierarchyCacheTTL)
	} else {
		hierarchy = authz.NewHierarchy(orgRepo)
	}
	scopes := authz.NewScopeResolver(hierarchy)
	actors := authz.NewActorResolver(userRepo, cfg.Auth.BootstrapAdminEmail)

	// Optional OIDC single sign-on
	var oidcProvider *oidc.Provider
	if cfg.Auth.OIDC.Enabled {
		p, err := oidc.NewProvider(&cfg.Auth.OIDC)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
		}
		oidcProvider = p
		slog.Info("OIDC provider initialized", "issuer", cfg.Auth.OIDC.IssuerURL)
	}

	// Audit shipping to external destinations (file, webhook)
	shipper, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure audit shippers: %w", err)
	}

	// Handlers
	sessionHandlers := NewSessionHandlers(cfg, userRepo, oidcProvider)
	orgHandlers := NewOrganizationHandlers(orgRepo, userRepo, hierarchy, scopes)
	inspectionHandlers := NewInspectionHandlers(inspectionRepo, userRepo, scopes)
	actionItemHandlers := NewActionItemHandlers(actionItemRepo, inspectionRepo, scopes)
	templateHandlers := NewTemplateHandlers(templateRepo, scopes)
	auditHandlers := NewAuditHandlers(auditRepo)

	// Rate limiters. The session group gets the stricter limiter; Redis, when
	// available, makes the limits cluster-wide.
	var authLimiter, generalLimiter middleware.Limiter
	if rdb != nil {
		authLimiter = middleware.NewRedisRateLimiter(rdb, middleware.AuthRateLimitConfig())
		generalLimiter = middleware.NewRedisRateLimiter(rdb, middleware.DefaultRateLimitConfig())
	} else {
		authLimiter = middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
		generalLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	}

	// Middleware, outermost first
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, rdb))
	router.GET("/version", versionHandler())

	// Session endpoints: unauthenticated, strictly rate limited
	sessions := router.Group("/v1/sessions")
	sessions.Use(middleware.RateLimitMiddleware(authLimiter))
	{
		sessions.POST("", sessionHandlers.Login)
		if oidcProvider != nil {
			sessions.GET("/oidc/login", sessionHandlers.OIDCLogin)
			sessions.GET("/oidc/callback", sessionHandlers.OIDCCallback)
		}
	}

	// Everything below requires a resolved actor
	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(generalLimiter))
	v1.Use(middleware.AuthMiddleware(actors, userRepo))
	v1.Use(middleware.AuditMiddlewareWithShipper(auditRepo, shipper, &cfg.Audit))
	{
		v1.GET("/sessions/me", sessionHandlers.Me)

		orgs := v1.Group("/organizations")
		{
			orgs.GET("", orgHandlers.List)
			orgs.GET("/:id", orgHandlers.Get)
			orgs.GET("/:id/tree", orgHandlers.Tree)
			orgs.GET("/:id/children", orgHandlers.Children)
			orgs.GET("/:id/members", orgHandlers.Members)

			orgs.POST("", middleware.RequireAction(authz.ActionCreateOrganization), orgHandlers.Create)
			orgs.PUT("/:id", middleware.RequireAction(authz.ActionManageOrganization), orgHandlers.Update)
			orgs.DELETE("/:id", middleware.RequireAction(authz.ActionManageOrganization), orgHandlers.Deactivate)
			orgs.POST("/:id/invite", middleware.RequireAction(authz.ActionInviteUser), orgHandlers.Invite)
		}

		inspections := v1.Group("/inspections")
		{
			inspections.GET("", inspectionHandlers.List)
			inspections.GET("/export", middleware.RequireAction(authz.ActionExportData), inspectionHandlers.Export)
			inspections.GET("/:id", inspectionHandlers.Get)
			inspections.GET("/:id/action-items", actionItemHandlers.ListByInspection)

			inspections.POST("", middleware.RequireAction(authz.ActionCreateInspection), inspectionHandlers.Create)
			inspections.PUT("/:id", inspectionHandlers.Update)
			inspections.DELETE("/:id", middleware.RequireAction(authz.ActionDeleteInspection), inspectionHandlers.Delete)
			inspections.PUT("/:id/collaborators/:user_id", inspectionHandlers.UpsertCollaborator)
			inspections.POST("/:id/action-items", middleware.RequireAction(authz.ActionManageActionPlans), actionItemHandlers.Create)
		}

		actionItems := v1.Group("/action-items")
		{
			actionItems.GET("", actionItemHandlers.List)
			actionItems.GET("/:id", actionItemHandlers.Get)
			actionItems.PUT("/:id", middleware.RequireAction(authz.ActionManageActionPlans), actionItemHandlers.Update)
		}

		templates := v1.Group("/templates")
		{
			templates.GET("", templateHandlers.List)
			templates.GET("/:id", templateHandlers.Get)

			templates.POST("", middleware.RequireAction(authz.ActionManageTemplates), templateHandlers.Create)
			templates.PUT("/:id", middleware.RequireAction(authz.ActionManageTemplates), templateHandlers.Update)
			templates.DELETE("/:id", middleware.RequireAction(authz.ActionManageTemplates), templateHandlers.Deactivate)
		}

		auditLogs := v1.Group("/audit-logs")
		auditLogs.Use(middleware.RequireAction(authz.ActionManageRolePermissions))
		{
			auditLogs.GET("", auditHandlers.List)
			auditLogs.GET("/:id", auditHandlers.Get)
		}
	}

	// Overdue action-item notifier
	var notifier *jobs.OverdueNotifier
	if cfg.Jobs.OverdueNotifierEnabled {
		notifier = jobs.NewOverdueNotifier(actionItemRepo, auditRepo, cfg.Jobs.OverdueCheckInterval)
		go notifier.Start(context.Background())
	}

	bg := &BackgroundServices{
		overdueNotifier: notifier,
		rateLimiters:    []middleware.Limiter{authLimiter, generalLimiter},
	}

	return router, bg, nil
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service. Unlike the
// liveness probe (/health), this also pings Redis when it is configured, so a
// readiness gate fails when the hierarchy cache and rate limiter backend are
// unreachable.
func readinessHandler(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "redis not ready",
				})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging via slog.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
