package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jlorenzo681/documind/internal/shared/server/respond"
	"github.com/jlorenzo681/documind/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error body. The task and
// document ids set by handlers are logged when present.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"path":       c.Request.URL.Path,
				"route":      c.FullPath(),
				"method":     c.Request.Method,
			}
			for _, key := range []string{"taskId", "documentId"} {
				if v := c.GetString(key); v != "" {
					fields[key] = v
				}
			}
			telemetry.Error("http.panic", fields)
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
