package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/jobs"
	"tga-backend/internal/services/health"
	"tga-backend/internal/shared/config"
	"tga-backend/internal/shared/metrics"
	"tga-backend/internal/shared/server/middleware"
	"tga-backend/internal/shared/server/respond"
	"tga-backend/internal/standards"
)

// Rate limit groups.
const (
	groupDefault = "DEFAULT"
	groupPolling = "POLLING"
	groupSubmit  = "SUBMIT"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config           config.Config
	JobsHandler      *jobs.Handler
	StandardsHandler *standards.Handler
	// Health runs dependency checks for /health. Nil means always healthy.
	Health *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	if rules := rateLimitRules(deps.Config.RateLimitPerMinute); rules != nil {
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rules,
			DefaultGroup: groupDefault,
			GroupFor:     rateLimitGroup,
		}))
	}

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		if !report.OK {
			respond.Error(c, http.StatusServiceUnavailable, "unavailable", "dependencies not ready", report.Checks)
			return
		}
		respond.JSON(c, http.StatusOK, report)
	})
	if deps.JobsHandler != nil {
		deps.JobsHandler.RegisterRoutes(api)
	}
	if deps.StandardsHandler != nil {
		deps.StandardsHandler.RegisterRoutes(api)
	}

	return r
}

// rateLimitRules derives per-group token buckets from a per-minute budget.
// Status polling gets four times the budget, submissions a tenth of it.
func rateLimitRules(perMinute int) map[string]middleware.RateLimitRule {
	if perMinute <= 0 {
		return nil
	}
	rate := float64(perMinute) / 60
	return map[string]middleware.RateLimitRule{
		groupDefault: {Rate: rate, Burst: max(1, perMinute/6)},
		groupPolling: {Rate: rate * 4, Burst: max(1, perMinute/2)},
		groupSubmit:  {Rate: rate / 10, Burst: max(1, perMinute/60)},
	}
}

func rateLimitGroup(c *gin.Context) string {
	route := c.FullPath()
	switch {
	case c.Request.Method == http.MethodPost && route == "/api/v1/projects":
		return groupSubmit
	case c.Request.Method == http.MethodGet && (strings.HasSuffix(route, "/status") || strings.HasSuffix(route, "/events")):
		return groupPolling
	default:
		return groupDefault
	}
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
