package handlers

import (
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/api/pagination"
	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/audit"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
)

// AdminEventsHandler serves /api/admin/events.
type AdminEventsHandler struct {
	events      EventService
	auditLogger *audit.Logger
	env         string
	now         func() time.Time
}

func NewAdminEventsHandler(service EventService, auditLogger *audit.Logger, env string) *AdminEventsHandler {
	return &AdminEventsHandler{events: service, auditLogger: auditLogger, env: env, now: time.Now}
}

func (h *AdminEventsHandler) actor(r *http.Request) events.Actor {
	return events.Actor{ID: callerID(r), Admin: true}
}

// List handles GET /api/admin/events?status=&category=
func (h *AdminEventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := events.ParseAdminFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	page := pagination.Parse(r.URL.Query())
	list, total, err := h.events.List(r.Context(), filters, page.Limit, page.Offset())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	now := h.now()
	out := make([]events.View, 0, len(list))
	for _, e := range list {
		out = append(out, events.NewView(e, now))
	}
	response.Paginated(w, out, page.Meta(total))
}

// Get handles GET /api/admin/events/{id}. Admin reads are not counted as views.
func (h *AdminEventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), r.PathValue("id"), "")
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, events.NewView(e, h.now()))
}

// Update handles PUT /api/admin/events/{id}
func (h *AdminEventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in events.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	id := r.PathValue("id")
	e, err := h.events.Update(r.Context(), id, h.actor(r), in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "event.updated", "event", id, "success", nil)
	response.Message(w, "Event updated successfully", events.NewView(e, h.now()))
}

// Delete handles DELETE /api/admin/events/{id}
func (h *AdminEventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.events.Delete(r.Context(), id, h.actor(r)); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "event.deleted", "event", id, "success", nil)
	response.Message(w, "Event deleted successfully", nil)
}

// Approve handles PUT /api/admin/events/{id}/approve
func (h *AdminEventsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, events.StatusActive, "event.approved", "Event approved successfully")
}

// Reject handles PUT /api/admin/events/{id}/reject
func (h *AdminEventsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, events.StatusCancelled, "event.rejected", "Event rejected successfully")
}

func (h *AdminEventsHandler) setStatus(w http.ResponseWriter, r *http.Request, status events.Status, action, message string) {
	id := r.PathValue("id")
	e, err := h.events.SetStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), action, "event", id, "success", nil)
	response.Message(w, message, events.NewView(e, h.now()))
}

// Attendees handles GET /api/admin/events/{id}/attendees
func (h *AdminEventsHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	_, list, err := h.events.Attendees(r.Context(), r.PathValue("id"), h.actor(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, list)
}
