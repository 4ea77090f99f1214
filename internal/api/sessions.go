// sessions.go implements the session handlers: local password login, the OIDC
// code flow, and the authenticated identity endpoint. Both login paths end the
// same way, with a signed session JWT whose subject feeds actor resolution on
// every subsequent request.
package api

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/auth"
	"github.com/safesite-hq/safesite/internal/auth/oidc"
	"github.com/safesite-hq/safesite/internal/config"
	"github.com/safesite-hq/safesite/internal/db/models"
	"github.com/safesite-hq/safesite/internal/db/repositories"
	"github.com/safesite-hq/safesite/internal/middleware"
)

// SessionHandlers implements login and identity endpoints.
type SessionHandlers struct {
	cfg      *config.Config
	users    *repositories.UserRepository
	provider *oidc.Provider // nil when OIDC is disabled
}

// NewSessionHandlers creates session handlers. provider may be nil.
func NewSessionHandlers(cfg *config.Config, users *repositories.UserRepository, provider *oidc.Provider) *SessionHandlers {
	return &SessionHandlers{cfg: cfg, users: users, provider: provider}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates with email and password and issues a session token.
// The response is identical for unknown email, wrong password, SSO-only
// account, and deactivated account: no probe may distinguish them.
func (h *SessionHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	if user == nil || !user.IsActive || user.PasswordHash == nil ||
		!auth.CheckPassword(*user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	h.issueSession(c, user)
}

// OIDCLogin redirects the browser to the identity provider. The state value is
// random per request; the provider echoes it back and the callback verifies it
// against the cookie set here.
func (h *SessionHandlers) OIDCLogin(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start login"})
		return
	}

	c.SetCookie("oidc_state", state, 300, "/", "", h.cfg.Security.TLS.Enabled, true)
	c.Redirect(http.StatusFound, h.provider.GetAuthURL(state))
}

// OIDCCallback completes the code flow: verifies state, exchanges the code,
// validates the ID token, and matches or provisions the local user. First-time
// SSO users are created as members with no organization; an admin attaches
// them to an organization afterwards via invite.
func (h *SessionHandlers) OIDCCallback(c *gin.Context) {
	stateCookie, err := c.Cookie("oidc_state")
	if err != nil || stateCookie == "" || c.Query("state") != stateCookie {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OIDC state"})
		return
	}
	c.SetCookie("oidc_state", "", -1, "/", "", h.cfg.Security.TLS.Enabled, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}

	token, err := h.provider.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		slog.Error("OIDC code exchange failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Login failed"})
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identity provider returned no ID token"})
		return
	}

	idToken, err := h.provider.VerifyIDToken(c.Request.Context(), rawIDToken)
	if err != nil {
		slog.Error("OIDC token verification failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Login failed"})
		return
	}

	sub, email, name, err := h.provider.ExtractUserInfo(idToken)
	if err != nil {
		slog.Error("OIDC claims extraction failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Login failed"})
		return
	}

	user, err := h.users.GetUserByOIDCSub(c.Request.Context(), sub)
	if err != nil {
		slog.Error("OIDC user lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	if user == nil {
		// Match an invited account by email before provisioning a fresh one.
		user, err = h.users.GetUserByEmail(c.Request.Context(), email)
		if err != nil {
			slog.Error("OIDC user lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}
	}

	if user == nil {
		user = &models.User{
			Email:   email,
			Name:    name,
			Role:    "member",
			OIDCSub: &sub,
		}
		if err := h.users.Create(c.Request.Context(), user); err != nil {
			slog.Error("OIDC user provisioning failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}
		slog.Info("provisioned user from OIDC login", "user_id", user.ID, "email", email)
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is deactivated"})
		return
	}

	h.issueSession(c, user)
}

// Me returns the authenticated actor's identity as resolved for this request.
func (h *SessionHandlers) Me(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), actor.UserID)
	if err != nil || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
		// The effective role may differ from the persisted one for the
		// bootstrap identity; report what authorization actually used.
		"effective_role": string(actor.Role),
	})
}

func (h *SessionHandlers) issueSession(c *gin.Context, user *models.User) {
	token, err := auth.GenerateJWT(user.ID, user.Email, h.cfg.Auth.JWT.Expiry)
	if err != nil {
		slog.Error("failed to sign session token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.cfg.Auth.JWT.Expiry.Seconds()),
		"user":       user,
	})
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
