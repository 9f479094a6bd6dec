package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"leaselens-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can name what they touched.
const (
	DocumentIDKey       = "documentId"
	ConversationIDKey   = "conversationId"
	StatusTransitionKey = "statusTransition"
)

// quietPaths are polled by load balancers and scrapers and not logged.
var quietPaths = map[string]struct{}{
	"/api/v1/health": {},
	"/metrics":       {},
}

// Logging emits one request.complete line per request. Server errors are
// logged at error level so they surface without a status filter.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if _, ok := quietPaths[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            status,
			"status_transition": c.GetString(StatusTransitionKey),
			"duration_ms":       float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes":             c.Writer.Size(),
			"user_id":           UserIDFromContext(c),
			"is_guest":          IsGuestFromContext(c),
			"document_id":       c.GetString(DocumentIDKey),
			"conversation_id":   c.GetString(ConversationIDKey),
			"client_ip":         c.ClientIP(),
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
