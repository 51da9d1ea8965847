package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jlorenzo681/documind/internal/shared/server/respond"
)

// Rate limit groups. Status and result polling has its own bucket.
const (
	GroupDefault = "default"
	GroupPolling = "polling"
)

// pruneThreshold is the bucket count above which refilled buckets are dropped.
const pruneThreshold = 4096

// RateLimitRule is a token bucket: Rate tokens per second up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// PerMinute returns a rule allowing n requests per minute with a burst of n.
// n <= 0 disables limiting.
func PerMinute(n int) RateLimitRule {
	if n <= 0 {
		return RateLimitRule{}
	}
	return RateLimitRule{Rate: float64(n) / 60.0, Burst: n}
}

func (r RateLimitRule) disabled() bool { return r.Rate <= 0 || r.Burst <= 0 }

type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter holds one bucket per client and group.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

type rateBucket struct {
	tokens float64
	last   time.Time
	rule   RateLimitRule
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{buckets: make(map[string]*rateBucket), now: now}
}

// ClientKey identifies the caller for limiting: the API key fingerprint or
// token subject set by Auth, or the client IP for anonymous callers.
func ClientKey(c *gin.Context) string {
	p := strings.TrimSpace(PrincipalFromContext(c))
	if p == "" || p == "anonymous" {
		return "ip:" + c.ClientIP()
	}
	return p
}

func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = GroupDefault
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok || rule.disabled() {
			c.Next()
			return
		}

		allowed, remaining, retryAfter := cfg.Limiter.Take(ClientKey(c)+"|"+group, rule)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if allowed {
			c.Next()
			return
		}

		retrySeconds := max(1, int(math.Ceil(retryAfter.Seconds())))
		c.Header("Retry-After", strconv.Itoa(retrySeconds))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again later.", gin.H{
			"group":          group,
			"retry_after_ms": max(1, int(retryAfter/time.Millisecond)),
		})
	}
}

// Take spends one token from key's bucket. It reports whether the request
// may proceed, the whole tokens left, and how long until the next token.
func (l *RateLimiter) Take(key string, rule RateLimitRule) (bool, int, time.Duration) {
	if l == nil || rule.disabled() {
		return true, rule.Burst, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= pruneThreshold {
			l.prune(now)
		}
		b = &rateBucket{tokens: float64(rule.Burst), last: now, rule: rule}
		l.buckets[key] = b
	}
	b.refill(now, rule)

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}
	wait := time.Duration(math.Ceil((1-b.tokens)/rule.Rate*1000)) * time.Millisecond
	return false, 0, wait
}

func (b *rateBucket) refill(now time.Time, rule RateLimitRule) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
		b.last = now
	}
	b.rule = rule
}

// prune drops buckets that would be full by now; they carry no state.
func (l *RateLimiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if b.tokens+now.Sub(b.last).Seconds()*b.rule.Rate >= float64(b.rule.Burst) {
			delete(l.buckets, key)
		}
	}
}

// Len reports the number of live buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
