package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/shared/telemetry"
)

// StatusTransitionKey is the gin context key handlers set to record a job
// status change in the request log line.
const StatusTransitionKey = "statusTransition"

// Logging writes one request.complete line per request. Preflights and the
// metrics scrape are skipped. 5xx responses are logged at error level.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"route":             c.FullPath(),
			"path":              c.Request.URL.Path,
			"status":            status,
			"status_transition": c.GetString(StatusTransitionKey),
			"duration_ms":       float64(time.Since(start).Microseconds()) / 1000,
			"bytes":             c.Writer.Size(),
			"client_ip":         c.ClientIP(),
		}
		if id := c.Param("id"); id != "" {
			fields["resource_id"] = id
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		if status >= http.StatusInternalServerError {
			telemetry.Error("request.complete", fields)
			return
		}
		telemetry.Info("request.complete", fields)
	}
}
