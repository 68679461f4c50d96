package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/domain/analytics"
)

// Reports computes the analytics served to users and admins.
type Reports interface {
	Attended(ctx context.Context, userID string) (analytics.AttendedReport, error)
	ConnectionGrowth(ctx context.Context, userID string) (analytics.ConnectionGrowthReport, error)
	Engagement(ctx context.Context, userID string) (analytics.EngagementReport, error)
	Event(ctx context.Context, eventID, userID string) (analytics.EventReport, error)
	Organizer(ctx context.Context, userID string) (analytics.OrganizerReport, error)
	Dashboard(ctx context.Context) (analytics.DashboardStats, error)
	AdminEvents(ctx context.Context) (analytics.AdminEventReport, error)
	AdminUsers(ctx context.Context) (analytics.AdminUserReport, error)
	Revenue(ctx context.Context) (analytics.RevenueReport, error)
	Overview(ctx context.Context) (analytics.OverviewReport, error)
}

// AnalyticsHandler serves /api/analytics and the admin analytics endpoints.
type AnalyticsHandler struct {
	reports Reports
	env     string
}

func NewAnalyticsHandler(reports Reports, env string) *AnalyticsHandler {
	return &AnalyticsHandler{reports: reports, env: env}
}

// serve runs a report and writes it as the data of a success envelope.
func serve[T any](h *AnalyticsHandler, w http.ResponseWriter, r *http.Request, report func(ctx context.Context) (T, error)) {
	out, err := report(r.Context())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, out)
}

// Attended handles GET /api/analytics/events/attended
func (h *AnalyticsHandler) Attended(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, func(ctx context.Context) (analytics.AttendedReport, error) {
		return h.reports.Attended(ctx, callerID(r))
	})
}

// ConnectionGrowth handles GET /api/analytics/connections/growth
func (h *AnalyticsHandler) ConnectionGrowth(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, func(ctx context.Context) (analytics.ConnectionGrowthReport, error) {
		return h.reports.ConnectionGrowth(ctx, callerID(r))
	})
}

// Engagement handles GET /api/analytics/engagement
func (h *AnalyticsHandler) Engagement(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, func(ctx context.Context) (analytics.EngagementReport, error) {
		return h.reports.Engagement(ctx, callerID(r))
	})
}

// Event handles GET /api/analytics/events/{eventId}/analytics
func (h *AnalyticsHandler) Event(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, func(ctx context.Context) (analytics.EventReport, error) {
		return h.reports.Event(ctx, r.PathValue("eventId"), callerID(r))
	})
}

// OrganizerSummary handles GET /api/analytics/events/organized/summary
func (h *AnalyticsHandler) OrganizerSummary(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, func(ctx context.Context) (analytics.OrganizerReport, error) {
		return h.reports.Organizer(ctx, callerID(r))
	})
}

// DashboardStats handles GET /api/admin/dashboard/stats
func (h *AnalyticsHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.reports.Dashboard)
}

// Overview handles GET /api/admin/analytics/overview
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.reports.Overview)
}

// AdminEvents handles GET /api/admin/analytics/events
func (h *AnalyticsHandler) AdminEvents(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.reports.AdminEvents)
}

// AdminUsers handles GET /api/admin/analytics/users
func (h *AnalyticsHandler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.reports.AdminUsers)
}

// Revenue handles GET /api/admin/analytics/revenue
func (h *AnalyticsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.reports.Revenue)
}
