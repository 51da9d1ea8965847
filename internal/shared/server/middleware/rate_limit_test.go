package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimitPollingHigherThanDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	groupFor := func(c *gin.Context) string {
		if c.Request.Method == http.MethodGet && c.FullPath() == "/api/v1/analyze/:id/status" {
			return GroupPolling
		}
		return GroupDefault
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("principal", "key:test-client")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: GroupDefault,
		GroupFor:     groupFor,
		Limiter:      limiter,
		Rules: map[string]RateLimitRule{
			GroupDefault: {Rate: 1, Burst: 2},
			GroupPolling: {Rate: 5, Burst: 10},
		},
	}))

	r.GET("/api/v1/analyze/:id/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/api/v1/documents", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analyze/task-1/status", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("polling request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("default request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("default request 3 expected 429, got %d", resp.Code)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("principal", "key:test-client")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: GroupDefault,
		GroupFor: func(c *gin.Context) string {
			return GroupDefault
		},
		Limiter: limiter,
		Rules: map[string]RateLimitRule{
			GroupDefault: {Rate: 1, Burst: 1},
		},
	}))
	r.GET("/api/v1/limited", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req1 := httptest.NewRequest(http.MethodGet, "/api/v1/limited", nil)
	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, req1)
	if resp1.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", resp1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/limited", nil)
	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, req2)
	if resp2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.Code)
	}
	if resp2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	var payload map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	body, _ := payload["error"].(map[string]any)
	if body["code"] != "rate_limited" {
		t.Fatalf("expected code=rate_limited, got %#v", payload)
	}
	details, _ := body["details"].(map[string]any)
	if _, ok := details["retry_after_ms"]; !ok {
		t.Fatalf("expected retry_after_ms in details")
	}
}

func TestRateLimitBucketsPerPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("principal", c.GetHeader("X-Test-Principal"))
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		Limiter: limiter,
		Rules:   map[string]RateLimitRule{GroupDefault: {Rate: 1, Burst: 1}},
	}))
	r.GET("/api/v1/results/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	send := func(principal, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/results/task-1", nil)
		req.Header.Set("X-Test-Principal", principal)
		req.RemoteAddr = ip + ":40000"
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp
	}

	cases := []struct {
		principal, ip string
		want          int
	}{
		{"key:alpha", "10.0.0.1", http.StatusOK},
		{"key:alpha", "10.0.0.2", http.StatusTooManyRequests},
		{"sub:user-1", "10.0.0.1", http.StatusOK},
		{"anonymous", "10.0.0.1", http.StatusOK},
		{"anonymous", "10.0.0.1", http.StatusTooManyRequests},
		{"anonymous", "10.0.0.3", http.StatusOK},
	}
	for i, tc := range cases {
		if got := send(tc.principal, tc.ip).Code; got != tc.want {
			t.Fatalf("request %d (%s from %s): expected %d, got %d", i+1, tc.principal, tc.ip, tc.want, got)
		}
	}
	if got := limiter.Len(); got != 4 {
		t.Fatalf("expected 4 buckets, got %d", got)
	}
}

func TestRateLimitSetsRemainingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{
		Limiter: NewRateLimiter(func() time.Time { return now }),
		Rules:   map[string]RateLimitRule{GroupDefault: {Rate: 1, Burst: 3}},
	}))
	r.GET("/api/v1/documents", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, want := range []string{"2", "1", "0"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
		if resp.Header().Get("X-RateLimit-Limit") != "3" {
			t.Fatalf("expected limit header 3, got %q", resp.Header().Get("X-RateLimit-Limit"))
		}
		if got := resp.Header().Get("X-RateLimit-Remaining"); got != want {
			t.Fatalf("expected remaining %s, got %s", want, got)
		}
	}
}

func TestRateLimiterPrunesRefilledBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 1}

	for i := 0; i < pruneThreshold; i++ {
		limiter.Take("ip:10.0.0."+strconv.Itoa(i)+"|"+GroupDefault, rule)
	}
	if got := limiter.Len(); got != pruneThreshold {
		t.Fatalf("expected %d buckets, got %d", pruneThreshold, got)
	}

	now = now.Add(2 * time.Second)
	if ok, _, _ := limiter.Take("key:fresh|"+GroupDefault, rule); !ok {
		t.Fatalf("expected fresh key to be allowed")
	}
	if got := limiter.Len(); got != 1 {
		t.Fatalf("expected refilled buckets to be pruned, got %d", got)
	}
}

func TestPerMinute(t *testing.T) {
	rule := PerMinute(60)
	if rule.Rate != 1 || rule.Burst != 60 {
		t.Fatalf("unexpected rule: %+v", rule)
	}
	if got := PerMinute(0); got.Rate != 0 || got.Burst != 0 {
		t.Fatalf("expected disabled rule, got %+v", got)
	}
}
