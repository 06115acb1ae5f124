package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 2 * time.Second

// Pinger checks connectivity to a backing store (*sql.DB satisfies it).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the policy engine evaluates.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server serves readiness checks for load balancers and orchestration.
type Server struct {
	pinger Pinger
	policy PolicyChecker
}

// NewServer returns a health Server. Nil dependencies are skipped.
func NewServer(pinger Pinger, policy PolicyChecker) *Server {
	return &Server{pinger: pinger, policy: policy}
}

// HealthCheck responds 200 {"status":"serving"} when every dependency
// answers, otherwise 503 naming the failed check.
func (s *Server) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()
	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_serving", "check": "database"})
			return
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_serving", "check": "policy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "serving"})
}
