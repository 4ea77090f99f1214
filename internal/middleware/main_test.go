package middleware

import (
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/safesite-hq/safesite/internal/auth"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	auth.SetJWTSecret("test-jwt-secret-that-is-32-chars!!")
	os.Exit(m.Run())
}
