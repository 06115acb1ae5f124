package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"data-portal/backend/internal/audit"
)

// Audit returns gin middleware that records an audit entry after each
// authenticated request. Routes in skip (keyed "METHOD /route/pattern") are
// not audited. Entries are best-effort and never fail the request.
func Audit(logger audit.AuditLogger, skip map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if logger == nil {
			return
		}
		route := c.FullPath()
		if route == "" || skip[c.Request.Method+" "+route] {
			return
		}
		userID, _ := GetUserID(c.Request.Context())
		if userID == "" {
			return
		}
		ar := audit.ParseRoute(c.Request.Method, route)
		logger.LogEvent(c.Request.Context(), userID, ar.Action, ar.Resource, "status="+strconv.Itoa(c.Writer.Status()))
	}
}
