package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(RequestIDMiddleware())

	var seen string
	r.GET("/probe", func(c *gin.Context) {
		id, _ := c.Get(RequestIDKey)
		seen, _ = id.(string)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/probe", nil)
	r.ServeHTTP(w, req)

	if seen == "" {
		t.Error("request ID not stored in context")
	}
	if got := w.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
}

func TestRequestID_PreservesInbound(t *testing.T) {
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(RequestIDMiddleware())
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-42")
	r.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "upstream-id-42" {
		t.Errorf("response header = %q, want upstream-id-42", got)
	}
}
