package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer rl.Stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if allowed, _ := rl.Allow(ctx, "ip:1.2.3.4"); !allowed {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if allowed, _ := rl.Allow(ctx, "ip:1.2.3.4"); allowed {
		t.Error("request beyond burst should be denied")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer rl.Stop()

	ctx := context.Background()
	if allowed, _ := rl.Allow(ctx, "user:a"); !allowed {
		t.Fatal("first request for user:a should be allowed")
	}
	if allowed, _ := rl.Allow(ctx, "user:a"); allowed {
		t.Error("second request for user:a should be denied")
	}
	if allowed, _ := rl.Allow(ctx, "user:b"); !allowed {
		t.Error("user:b should have its own bucket")
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 6000, // 100/s so the test refills quickly
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer rl.Stop()

	ctx := context.Background()
	if allowed, _ := rl.Allow(ctx, "k"); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := rl.Allow(ctx, "k"); allowed {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if allowed, _ := rl.Allow(ctx, "k"); !allowed {
		t.Error("bucket should have refilled")
	}
}

func TestRateLimitMiddleware_TooManyRequests(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         2,
		CleanupInterval:   time.Minute,
	})
	defer rl.Stop()

	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(RateLimitMiddleware(rl))
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/probe", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		r.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", last.Header().Get("Retry-After"))
	}
}

func TestRateLimitMiddleware_SetsHeaders(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimitConfig())
	defer rl.Stop()

	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(RateLimitMiddleware(rl))
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("GET", "/probe", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("missing X-RateLimit-Limit header")
	}
	if w.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("missing X-RateLimit-Remaining header")
	}
}
