package middleware

import (
	"net/http"
	"strings"
)

// Header names carrying presented credentials. Lookups are case-insensitive.
const (
	HeaderUserID    = "X-User-Id"
	HeaderSessionID = "X-Session-Id"
	HeaderRole      = "X-User-Role"
)

// Cookie names set at login and read by CookieStrategy.
const (
	CookieMarker    = "admin-session"
	CookieUserID    = "user-id"
	CookieSessionID = "session-id"
	CookieRole      = "user-role"
	MarkerValue     = "authenticated"
)

// Credentials are the identifiers a request presents. ClaimedRole is
// informational; the authoritative role comes from the session row.
type Credentials struct {
	UserID      string
	SessionID   string
	ClaimedRole string
	Source      string
}

// Complete reports whether both ids are present.
func (c Credentials) Complete() bool {
	return c.UserID != "" && c.SessionID != ""
}

// Strategy extracts credentials from one transport. ok is false when the
// transport carries nothing, so the next strategy is tried.
type Strategy interface {
	Extract(r *http.Request) (creds Credentials, ok bool)
}

// HeaderStrategy reads X-User-Id / X-Session-Id / X-User-Role. Headers count
// only when both ids are present; a partial set falls through to cookies.
type HeaderStrategy struct{}

func (HeaderStrategy) Extract(r *http.Request) (Credentials, bool) {
	c := Credentials{
		UserID:      strings.TrimSpace(r.Header.Get(HeaderUserID)),
		SessionID:   strings.TrimSpace(r.Header.Get(HeaderSessionID)),
		ClaimedRole: strings.TrimSpace(r.Header.Get(HeaderRole)),
		Source:      "header",
	}
	if !c.Complete() {
		return Credentials{}, false
	}
	return c, true
}

// CookieStrategy reads the login marker cookie and its companion id cookies.
// A marker without ids yields incomplete credentials.
type CookieStrategy struct{}

func (CookieStrategy) Extract(r *http.Request) (Credentials, bool) {
	if cookieValue(r, CookieMarker) != MarkerValue {
		return Credentials{}, false
	}
	return Credentials{
		UserID:      cookieValue(r, CookieUserID),
		SessionID:   cookieValue(r, CookieSessionID),
		ClaimedRole: cookieValue(r, CookieRole),
		Source:      "cookie",
	}, true
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// DefaultStrategies is headers first, then cookies.
func DefaultStrategies() []Strategy {
	return []Strategy{HeaderStrategy{}, CookieStrategy{}}
}

// ExtractCredentials returns the result of the first strategy that finds anything.
func ExtractCredentials(r *http.Request, strategies []Strategy) (Credentials, bool) {
	for _, s := range strategies {
		if c, ok := s.Extract(r); ok {
			return c, true
		}
	}
	return Credentials{}, false
}
