package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"leaselens-backend/internal/shared/server/respond"
	"leaselens-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error body. When the response
// has already started, as on a chat event stream, the connection is only
// aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			telemetry.Error("http.panic", map[string]any{
				"request_id":       RequestIDFromContext(c),
				"user_id":          UserIDFromContext(c),
				"path":             c.Request.URL.Path,
				"method":           c.Request.Method,
				"error":            rec,
				"stack":            string(debug.Stack()),
				"response_started": c.Writer.Written(),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
