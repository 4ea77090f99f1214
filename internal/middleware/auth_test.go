package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/auth"
	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/db/models"
)

type fakeUserStore struct {
	users map[string]*models.User
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	return f.users[id], nil
}

func strPtr(s string) *string { return &s }

func authRouter(t *testing.T, store *fakeUserStore) *gin.Engine {
	t.Helper()
	resolver := authz.NewActorResolver(store, "")

	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(AuthMiddleware(resolver, nil))
	r.GET("/probe", func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID, "role": string(actor.Role)})
	})
	return r
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	r := authRouter(t, &fakeUserStore{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/probe", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_NotBearer(t *testing.T) {
	r := authRouter(t, &fakeUserStore{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	r := authRouter(t, &fakeUserStore{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_UnknownUser(t *testing.T) {
	r := authRouter(t, &fakeUserStore{users: map[string]*models.User{}})
	token, err := auth.GenerateJWT("ghost", "ghost@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ResolvesActor(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"user-1": {
			ID:             "user-1",
			Email:          "inspector@example.com",
			Role:           "inspector",
			OrganizationID: strPtr("org-1"),
			IsActive:       true,
		},
	}}
	r := authRouter(t, store)

	token, err := auth.GenerateJWT("user-1", "inspector@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware_DeactivatedUser(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"user-1": {
			ID:       "user-1",
			Email:    "gone@example.com",
			Role:     "member",
			IsActive: false,
		},
	}}
	r := authRouter(t, store)

	token, err := auth.GenerateJWT("user-1", "gone@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
