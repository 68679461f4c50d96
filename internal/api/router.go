package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/api/handlers"
	"github.com/Togather-Foundation/eventplanner/internal/api/middleware"
	"github.com/Togather-Foundation/eventplanner/internal/auth"
	"github.com/Togather-Foundation/eventplanner/internal/config"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
)

// Deps is everything the router mounts. Handlers left nil are not needed by
// tests that only exercise guards and the fixed endpoints, but every handler
// must be set for a serving process.
type Deps struct {
	Config      config.Config
	Logger      zerolog.Logger
	Build       BuildInfo
	Auth        *middleware.Authenticator
	RateLimiter *middleware.RateLimiter
	Maintenance middleware.MaintenanceCheck
	Health      *handlers.HealthChecker

	Accounts      *handlers.AuthHandler
	Users         *handlers.UsersHandler
	Events        *handlers.EventsHandler
	Analytics     *handlers.AnalyticsHandler
	AdminAccounts *handlers.AdminAccountsHandler
	AdminUsers    *handlers.AdminUsersHandler
	AdminEvents   *handlers.AdminEventsHandler
	AdminSystem   *handlers.AdminSystemHandler
}

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

type guard = func(http.Handler) http.Handler

// routes registers patterns on one mux with the rate-limit tier applied
// outside the guards.
type routes struct {
	mux     *http.ServeMux
	limiter *middleware.RateLimiter
}

func (rt routes) handle(pattern string, tier middleware.RateLimitTier, h http.HandlerFunc, guards ...guard) {
	var handler http.Handler = h
	for i := len(guards) - 1; i >= 0; i-- {
		handler = guards[i](handler)
	}
	rt.mux.Handle(pattern, rt.limiter.Limit(tier)(handler))
}

// NewRouter builds the HTTP handler: the route table wrapped in the global
// middleware chain.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	mux := http.NewServeMux()
	rt := routes{mux: mux, limiter: d.RateLimiter}
	a := d.Auth

	mux.Handle("GET /{$}", handlers.Root(d.Build.Version))
	if d.Health != nil {
		mux.Handle("GET /health", d.Health.Health())
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /version", VersionHandler(d.Build))
	mux.Handle("GET /api/openapi.json", OpenAPIHandler())

	if h := d.Accounts; h != nil {
		rt.handle("POST /api/auth/register", middleware.TierAuth, h.Register)
		rt.handle("POST /api/auth/login", middleware.TierAuth, h.Login)
		rt.handle("POST /api/auth/forgot-password", middleware.TierPublic, h.ForgotPassword)
		rt.handle("POST /api/auth/reset-password/{token}", middleware.TierPublic, h.ResetPassword)
		rt.handle("POST /api/auth/admin/login", middleware.TierAuth, h.AdminLogin)
		rt.handle("POST /api/auth/admin/create-owner", middleware.TierAuth, h.CreateOwner)
		rt.handle("GET /api/auth/me", middleware.TierPublic, h.Me, a.Protect)
		rt.handle("PUT /api/auth/me", middleware.TierPublic, h.UpdateMe, a.Protect)
		rt.handle("POST /api/auth/change-password", middleware.TierPublic, h.ChangePassword, a.Protect)
		rt.handle("POST /api/auth/logout", middleware.TierPublic, h.Logout, a.Protect)
		rt.handle("POST /api/auth/refresh", middleware.TierPublic, h.Refresh, a.Protect)
	}

	if h := d.Users; h != nil {
		rt.handle("GET /api/users/profile", middleware.TierPublic, h.GetProfile, a.User)
		rt.handle("PUT /api/users/profile", middleware.TierPublic, h.UpdateProfile, a.UserAccount)
		rt.handle("GET /api/users/connections", middleware.TierPublic, h.Connections, a.User)
		rt.handle("POST /api/users/connections/send/{userId}", middleware.TierPublic, h.SendConnection, a.UserAccount)
		rt.handle("POST /api/users/connections/accept/{userId}", middleware.TierPublic, h.AcceptConnection, a.UserAccount)
		rt.handle("POST /api/users/connections/reject/{userId}", middleware.TierPublic, h.RejectConnection, a.UserAccount)
		rt.handle("DELETE /api/users/connections/{userId}", middleware.TierPublic, h.RemoveConnection, a.UserAccount)
		rt.handle("GET /api/users/search", middleware.TierPublic, h.Search, a.User)
		rt.handle("GET /api/users/suggestions", middleware.TierPublic, h.Suggestions, a.User)
		rt.handle("GET /api/users/nearby", middleware.TierPublic, h.Nearby, a.User)
		rt.handle("GET /api/users/{userId}/public-profile", middleware.TierPublic, h.PublicProfile, a.User)
	}

	if h := d.Events; h != nil {
		rt.handle("GET /api/events", middleware.TierPublic, h.List, a.Optional)
		rt.handle("POST /api/events", middleware.TierPublic, h.Create, a.UserAccount)
		rt.handle("GET /api/events/search", middleware.TierPublic, h.Search, a.Optional)
		rt.handle("GET /api/events/user/attending", middleware.TierPublic, h.Attending, a.User)
		rt.handle("GET /api/events/user/organized", middleware.TierPublic, h.Organized, a.User)
		rt.handle("GET /api/events/{id}", middleware.TierPublic, h.Get, a.Optional)
		rt.handle("PUT /api/events/{id}", middleware.TierPublic, h.Update, a.User)
		rt.handle("DELETE /api/events/{id}", middleware.TierPublic, h.Delete, a.User)
		rt.handle("POST /api/events/{id}/register", middleware.TierPublic, h.Register, a.UserAccount)
		rt.handle("POST /api/events/{id}/unregister", middleware.TierPublic, h.Unregister, a.UserAccount)
		rt.handle("POST /api/events/{id}/checkin", middleware.TierPublic, h.CheckIn, a.UserAccount)
		// ServeMux rejects /api/events/category/{category} next to
		// /api/events/{id}/attendees, so the two-segment reads share a pattern.
		rt.handle("GET /api/events/{id}/{view}", middleware.TierPublic, eventViews(h, cfg.Environment), a.Optional)
	}

	if h := d.Analytics; h != nil {
		rt.handle("GET /api/analytics/events/attended", middleware.TierPublic, h.Attended, a.User)
		rt.handle("GET /api/analytics/connections/growth", middleware.TierPublic, h.ConnectionGrowth, a.User)
		rt.handle("GET /api/analytics/engagement", middleware.TierPublic, h.Engagement, a.User)
		rt.handle("GET /api/analytics/events/{eventId}/analytics", middleware.TierPublic, h.Event, a.User)
		rt.handle("GET /api/analytics/events/organized/summary", middleware.TierPublic, h.OrganizerSummary, a.User)

		rt.handle("GET /api/admin/dashboard/stats", middleware.TierAdmin, h.DashboardStats, a.Admin)
		rt.handle("GET /api/admin/analytics/overview", middleware.TierAdmin, h.Overview, a.Permission(auth.PermViewAnalytics))
		rt.handle("GET /api/admin/analytics/events", middleware.TierAdmin, h.AdminEvents, a.Permission(auth.PermViewAnalytics))
		rt.handle("GET /api/admin/analytics/users", middleware.TierAdmin, h.AdminUsers, a.Permission(auth.PermViewAnalytics))
		rt.handle("GET /api/admin/analytics/revenue", middleware.TierAdmin, h.Revenue, a.Permission(auth.PermViewAnalytics))
	}

	if h := d.AdminAccounts; h != nil {
		canCreate := a.Permission(auth.PermCreateAdmins)
		rt.handle("GET /api/admin/admins", middleware.TierAdmin, h.List, canCreate)
		rt.handle("POST /api/admin/admins", middleware.TierAdmin, h.Create, canCreate)
		rt.handle("GET /api/admin/admins/{id}", middleware.TierAdmin, h.Get, canCreate)
		rt.handle("PUT /api/admin/admins/{id}", middleware.TierAdmin, h.Update, canCreate)
		rt.handle("DELETE /api/admin/admins/{id}", middleware.TierAdmin, h.Delete, canCreate)
	}

	if h := d.AdminUsers; h != nil {
		canManage := a.Permission(auth.PermManageUsers)
		rt.handle("GET /api/admin/users", middleware.TierAdmin, h.List, canManage)
		rt.handle("GET /api/admin/users/{id}", middleware.TierAdmin, h.Get, canManage)
		rt.handle("PUT /api/admin/users/{id}", middleware.TierAdmin, h.Update, canManage)
		rt.handle("PUT /api/admin/users/{id}/activate", middleware.TierAdmin, h.Activate, canManage)
		rt.handle("PUT /api/admin/users/{id}/deactivate", middleware.TierAdmin, h.Deactivate, canManage)
		rt.handle("DELETE /api/admin/users/{id}", middleware.TierAdmin, h.Delete, a.Permission(auth.PermDeleteData))
	}

	if h := d.AdminEvents; h != nil {
		canManage := a.Permission(auth.PermManageEvents)
		rt.handle("GET /api/admin/events", middleware.TierAdmin, h.List, canManage)
		rt.handle("GET /api/admin/events/{id}", middleware.TierAdmin, h.Get, canManage)
		rt.handle("PUT /api/admin/events/{id}", middleware.TierAdmin, h.Update, canManage)
		rt.handle("PUT /api/admin/events/{id}/approve", middleware.TierAdmin, h.Approve, canManage)
		rt.handle("PUT /api/admin/events/{id}/reject", middleware.TierAdmin, h.Reject, canManage)
		rt.handle("GET /api/admin/events/{id}/attendees", middleware.TierAdmin, h.Attendees, canManage)
		rt.handle("DELETE /api/admin/events/{id}", middleware.TierAdmin, h.Delete, a.Permission(auth.PermDeleteData))
	}

	if h := d.AdminSystem; h != nil {
		rt.handle("GET /api/admin/dashboard/system-health", middleware.TierAdmin, h.SystemHealth, a.Admin)

		canModerate := a.Permission(auth.PermModerateContent)
		rt.handle("GET /api/admin/moderation/posts", middleware.TierAdmin, h.PendingPosts, canModerate)
		rt.handle("PUT /api/admin/moderation/posts/{id}/approve", middleware.TierAdmin, h.ApprovePost, canModerate)
		rt.handle("PUT /api/admin/moderation/posts/{id}/reject", middleware.TierAdmin, h.RejectPost, canModerate)
		rt.handle("GET /api/admin/moderation/reports", middleware.TierAdmin, h.Reports, canModerate)
		rt.handle("PUT /api/admin/moderation/reports/{id}/resolve", middleware.TierAdmin, h.ResolveReport, canModerate)

		rt.handle("GET /api/admin/settings", middleware.TierAdmin, h.GetSettings, a.Owner)
		rt.handle("PUT /api/admin/settings", middleware.TierAdmin, h.UpdateSettings, a.Owner)
		rt.handle("POST /api/admin/backup/create", middleware.TierAdmin, h.CreateBackup, a.Owner)
		rt.handle("GET /api/admin/backup/list", middleware.TierAdmin, h.ListBackups, a.Owner)
		rt.handle("POST /api/admin/backup/restore/{id}", middleware.TierAdmin, h.RestoreBackup, a.Owner)
		rt.handle("GET /api/admin/logs", middleware.TierAdmin, h.Logs, a.Owner)
	}

	mux.Handle("/", handlers.NotFound(cfg.Environment))

	var handler http.Handler = metrics.HTTPMiddleware(mux)
	if cfg.CSRF.Key != "" {
		handler = middleware.CSRFProtection([]byte(cfg.CSRF.Key), cfg.Auth.CookieSecure)(handler)
	}
	handler = middleware.Maintenance(d.Maintenance)(handler)
	handler = middleware.RequestSize(cfg.Server.MaxBodyBytes)(handler)
	handler = middleware.CORS(cfg.CORS, d.Logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Server.RequireHTTPS)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.Recoverer(handler)
	handler = middleware.RequestLogging(handler)
	handler = middleware.CorrelationID(d.Logger)(handler)
	return handler
}

// eventViews serves GET /api/events/category/{category},
// /api/events/{id}/attendees and /api/events/{id}/sessions.
func eventViews(h *handlers.EventsHandler, env string) http.HandlerFunc {
	notFound := handlers.NotFound(env)
	return func(w http.ResponseWriter, r *http.Request) {
		id, view := r.PathValue("id"), r.PathValue("view")
		switch {
		case id == "category":
			r.SetPathValue("category", view)
			h.ByCategory(w, r)
		case view == "attendees":
			h.Attendees(w, r)
		case view == "sessions":
			h.Sessions(w, r)
		default:
			notFound(w, r)
		}
	}
}
