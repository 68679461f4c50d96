package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/csrf"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
)

// CSRFProtection guards requests authenticated by the token cookie. Requests
// carrying an Authorization header, or no session cookie at all, cannot be
// forged by a third-party page and pass straight through.
//
// Browser clients read the token from the X-CSRF-Token response header of
// any safe request and echo it back on unsafe ones.
func CSRFProtection(authKey []byte, secure bool) func(http.Handler) http.Handler {
	protect := csrf.Protect(authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(next http.Handler) http.Handler {
		exposeToken := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-CSRF-Token", csrf.Token(r))
			next.ServeHTTP(w, r)
		})
		protected := protect(exposeToken)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cookieAuthenticated(r) {
				next.ServeHTTP(w, r)
				return
			}
			if !secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func cookieAuthenticated(r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
		return false
	}
	c, err := r.Cookie(TokenCookieName)
	return err == nil && c.Value != ""
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	response.Write(w, http.StatusForbidden, response.Envelope{
		Success: false,
		Message: "CSRF token validation failed",
	})
}

// CSRFToken returns the token for the current request.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}
