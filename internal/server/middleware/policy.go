package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"data-portal/backend/internal/policy/engine"
)

// RequirePolicy returns gin middleware that evaluates the access policy for
// the authenticated identity. It must run after RequireSession. Denials and
// evaluation errors abort with 403.
func RequirePolicy(evaluator engine.Evaluator, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		userID, _ := GetUserID(c.Request.Context())
		role, _ := GetRole(c.Request.Context())
		in := engine.Input{
			UserID: userID,
			Role:   role,
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
		}
		allowed, err := evaluator.Allow(c.Request.Context(), in)
		if err != nil {
			log.Error("policy: evaluation failed", "user_id", userID, "path", in.Path, "error", err)
		}
		if err != nil || !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
