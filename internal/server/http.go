package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"data-portal/backend/internal/audit"
	healthhandler "data-portal/backend/internal/health/handler"
	"data-portal/backend/internal/policy/engine"
	"data-portal/backend/internal/server/middleware"
	sessionhandler "data-portal/backend/internal/session/handler"
)

// Deps holds the dependencies of the HTTP surface.
type Deps struct {
	// ServiceName names the otelgin tracer; empty disables tracing middleware.
	ServiceName string
	Logger      *slog.Logger
	// Sessions validates request credentials.
	Sessions middleware.SessionValidator
	// Policy authorizes protected routes.
	Policy engine.Evaluator
	// Audit records authenticated requests. If nil, requests are not audited.
	Audit audit.AuditLogger
	// Session serves the auth and session routes.
	Session *sessionhandler.Handler
	// Health serves /healthz.
	Health *healthhandler.Server
}

// Routes excluded from request logs and from the audit middleware. Revocation
// is audited by the session authority with the target user.
var (
	quietPaths  = map[string]bool{"/healthz": true}
	skipAudited = map[string]bool{
		http.MethodGet + " /api/session":                   true,
		http.MethodDelete + " /api/admin/sessions/:userId": true,
	}
)

// NewRouter builds the gin engine.
//
// Route → handler mapping:
//   - /healthz                         → internal/health/handler
//   - /api/auth/{login,logout,activity,status} → internal/session/handler (public)
//   - /api/session, /api/admin/sessions → internal/session/handler (session + policy)
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if deps.ServiceName != "" {
		r.Use(otelgin.Middleware(deps.ServiceName))
	}
	r.Use(middleware.RequestContext(), middleware.RequestLogger(deps.Logger, quietPaths))

	r.GET("/healthz", deps.Health.HealthCheck)

	auth := r.Group("/api/auth")
	auth.POST("/login", deps.Session.Login)
	auth.POST("/logout", deps.Session.Logout)
	auth.POST("/activity", deps.Session.Activity)
	auth.GET("/status", deps.Session.Status)

	authn := middleware.NewAuthenticator(deps.Sessions, nil, deps.Logger)
	protected := r.Group("/api",
		middleware.Audit(deps.Audit, skipAudited),
		authn.RequireSession(),
		middleware.RequirePolicy(deps.Policy, deps.Logger),
	)
	protected.GET("/session", deps.Session.Session)
	protected.GET("/admin/sessions", deps.Session.ListSessions)
	protected.DELETE("/admin/sessions/:userId", deps.Session.RevokeSession)

	return r
}
