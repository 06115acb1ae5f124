package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Route overrides for the session admin console.
var routeOverrides = map[string]ActionResource{
	http.MethodGet + " /api/admin/sessions":            {Action: "list", Resource: "session"},
	http.MethodDelete + " /api/admin/sessions/:userId": {Action: ActionRevoked, Resource: ResourceSession},
}

// ParseRoute returns action and resource for a method and route pattern (e.g. GET /api/posts/:id).
// Action is a verb derived from the method: get, create, update, delete, or the lowercase method.
// Resource is the first path segment after /api that is not a parameter or "admin" (e.g. /api/posts/:id -> posts).
func ParseRoute(method, route string) ActionResource {
	if ar, ok := routeOverrides[method+" "+route]; ok {
		return ar
	}
	return ActionResource{Action: methodToAction(method), Resource: routeToResource(route)}
}

func routeToResource(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	if len(parts) > 0 && parts[0] == "api" {
		parts = parts[1:]
	}
	for _, p := range parts {
		if p == "" || p == "admin" || strings.HasPrefix(p, ":") || strings.HasPrefix(p, "*") {
			continue
		}
		return p
	}
	return "unknown"
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
