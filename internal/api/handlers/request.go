package handlers

import (
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/api/middleware"
	"github.com/Togather-Foundation/eventplanner/internal/audit"
)

// callerID returns the authenticated account ID, or "" for anonymous requests.
func callerID(r *http.Request) string {
	if p := middleware.PrincipalFrom(r); p != nil {
		return p.ID
	}
	return ""
}

func auditActor(r *http.Request) audit.Actor {
	p := middleware.PrincipalFrom(r)
	if p == nil {
		return audit.Actor{Type: "anonymous"}
	}
	return audit.Actor{ID: p.ID, Type: p.Type}
}

// CookieConfig controls the token cookie set by the auth endpoints.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

func (c CookieConfig) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func isAdminRequest(r *http.Request) bool {
	if p := middleware.PrincipalFrom(r); p != nil {
		return p.IsAdmin()
	}
	return middleware.ClaimsFrom(r).IsAdmin()
}
