package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/shared/server/respond"
	"tga-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error envelope. When the handler
// already started writing (an upgraded websocket, a streamed download) the
// connection is left as is and only the panic is logged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			route := c.FullPath()
			if route == "" {
				route = c.Request.URL.Path
			}
			telemetry.Error("http.panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"method":     c.Request.Method,
				"route":      route,
				"panic":      rec,
				"stack":      string(debug.Stack()),
				"written":    c.Writer.Written(),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}
