package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
)

// MaintenanceCheck reports whether the site is in maintenance mode.
type MaintenanceCheck func(ctx context.Context) (bool, error)

// Maintenance answers /api requests with 503 while maintenance mode is on.
// Admin and auth routes stay reachable so operators can log in and turn it
// off. A failing check lets the request through.
func Maintenance(check MaintenanceCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if check == nil || !strings.HasPrefix(r.URL.Path, "/api/") || maintenanceExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			on, err := check(r.Context())
			if err != nil {
				LoggerFromContext(r.Context()).Warn().Err(err).Msg("maintenance check failed")
			}
			if on {
				w.Header().Set("Retry-After", "300")
				response.Write(w, http.StatusServiceUnavailable, response.Envelope{
					Success: false,
					Message: "The site is under maintenance. Please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func maintenanceExempt(path string) bool {
	return strings.HasPrefix(path, "/api/admin/") || strings.HasPrefix(path, "/api/auth/")
}
