package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jlorenzo681/documind/internal/analyses"
	"github.com/jlorenzo681/documind/internal/documents"
	"github.com/jlorenzo681/documind/internal/services/health"
	"github.com/jlorenzo681/documind/internal/shared/config"
	"github.com/jlorenzo681/documind/internal/shared/metrics"
	"github.com/jlorenzo681/documind/internal/shared/server/middleware"
	"github.com/jlorenzo681/documind/internal/shared/server/respond"
)

// APIPrefix is the versioned API root.
const APIPrefix = "/api/v1"

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	AnalysisHandler *analyses.Handler
	Health          *health.Service
	Verifier        middleware.TokenVerifier
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(middleware.AuthConfig{
			Env:      cfg.Env,
			APIKeys:  cfg.APIKeys,
			Verifier: deps.Verifier,
			Exempt:   middleware.DefaultExemptPaths,
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				middleware.GroupDefault: middleware.PerMinute(cfg.RateLimitPerMinute),
				middleware.GroupPolling: middleware.PerMinute(cfg.RateLimitPerMinute * 5),
			},
		}),
	)

	r.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"status": health.StatusHealthy})
			return
		}
		respond.OK(c, deps.Health.Check(c.Request.Context()))
	})
	r.GET("/ready", func(c *gin.Context) {
		if deps.Health != nil && !deps.Health.Ready(c.Request.Context()) {
			respond.JSON(c, http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		respond.OK(c, gin.H{"status": "ready"})
	})
	r.GET("/live", func(c *gin.Context) {
		respond.OK(c, gin.H{"status": "alive"})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group(APIPrefix)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}

	return r
}

// Status polling gets a larger budget than mutating calls.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodGet {
		return middleware.GroupDefault
	}
	switch c.FullPath() {
	case APIPrefix + "/analyze/:id/status", APIPrefix + "/results/:id":
		return middleware.GroupPolling
	}
	return middleware.GroupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
