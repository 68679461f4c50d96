package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/api/pagination"
	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

// EventService is the event operations used by the public and admin handlers.
type EventService interface {
	Create(ctx context.Context, organizerID string, in events.CreateInput) (*events.Event, error)
	Get(ctx context.Context, id string, viewerID string) (*events.Event, error)
	List(ctx context.Context, filters events.Filters, limit, offset int) ([]*events.Event, int, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*events.Event, int, error)
	Update(ctx context.Context, id string, actor events.Actor, in events.UpdateInput) (*events.Event, error)
	Delete(ctx context.Context, id string, actor events.Actor) error
	SetStatus(ctx context.Context, id string, status events.Status) (*events.Event, error)
	Register(ctx context.Context, id, userID string) (events.Attendee, error)
	Unregister(ctx context.Context, id, userID string) (events.Attendee, []events.Attendee, error)
	CheckIn(ctx context.Context, id, userID string) (events.Attendee, error)
	Attendees(ctx context.Context, id string, viewer events.Actor) (*events.Event, events.AttendeeList, error)
	Sessions(ctx context.Context, id string) (events.SessionList, error)
	Attending(ctx context.Context, userID string) ([]*events.Event, error)
	Organized(ctx context.Context, userID string) ([]*events.Event, error)
}

type EventsHandler struct {
	events EventService
	env    string
	now    func() time.Time
}

func NewEventsHandler(service EventService, env string) *EventsHandler {
	return &EventsHandler{events: service, env: env, now: time.Now}
}

type registrationResult struct {
	EventID     string                `json:"eventId"`
	Status      events.AttendeeStatus `json:"status"`
	CheckInTime *time.Time            `json:"checkInTime,omitempty"`
}

type unregistrationResult struct {
	EventID  string `json:"eventId"`
	Promoted int    `json:"promoted"`
}

func (h *EventsHandler) views(list []*events.Event) []events.View {
	now := h.now()
	out := make([]events.View, 0, len(list))
	for _, e := range list {
		out = append(out, events.NewView(e, now))
	}
	return out
}

// List handles GET /api/events
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.list(w, r, filters)
}

// ByCategory handles GET /api/events/category/{category}
func (h *EventsHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	category := events.Category(strings.ToLower(r.PathValue("category")))
	if !category.Valid() {
		writeError(w, r, validation.New("category", "must be one of: conference, workshop, networking, seminar, social, other"), h.env)
		return
	}
	h.list(w, r, events.Filters{Category: category, Status: events.StatusActive})
}

func (h *EventsHandler) list(w http.ResponseWriter, r *http.Request, filters events.Filters) {
	page := pagination.Parse(r.URL.Query())
	list, total, err := h.events.List(r.Context(), filters, page.Limit, page.Offset())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Paginated(w, h.views(list), page.Meta(total))
}

// Search handles GET /api/events/search?q=
func (h *EventsHandler) Search(w http.ResponseWriter, r *http.Request) {
	page := pagination.Parse(r.URL.Query())
	list, total, err := h.events.Search(r.Context(), r.URL.Query().Get("q"), page.Limit, page.Offset())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Paginated(w, h.views(list), page.Meta(total))
}

// Get handles GET /api/events/{id}
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, events.NewView(e, h.now()))
}

// Create handles POST /api/events
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in events.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	e, err := h.events.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Created(w, "Event created successfully", events.NewView(e, h.now()))
}

// Update handles PUT /api/events/{id}. Only the organizer may edit.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in events.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	e, err := h.events.Update(r.Context(), r.PathValue("id"), events.Actor{ID: callerID(r)}, in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Message(w, "Event updated successfully", events.NewView(e, h.now()))
}

// Delete handles DELETE /api/events/{id}
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), r.PathValue("id"), events.Actor{ID: callerID(r)}); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Message(w, "Event deleted successfully", nil)
}

// Register handles POST /api/events/{id}/register
func (h *EventsHandler) Register(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := h.events.Register(r.Context(), id, callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	message := "Successfully registered for event"
	if a.Status == events.AttendeeWaitlisted {
		message = "Event is full. Added to waitlist"
	}
	response.Message(w, message, registrationResult{EventID: id, Status: a.Status})
}

// Unregister handles POST /api/events/{id}/unregister
func (h *EventsHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, promoted, err := h.events.Unregister(r.Context(), id, callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Message(w, "Successfully unregistered from event", unregistrationResult{EventID: id, Promoted: len(promoted)})
}

// CheckIn handles POST /api/events/{id}/checkin
func (h *EventsHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := h.events.CheckIn(r.Context(), id, callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Message(w, "Successfully checked in to event", registrationResult{EventID: id, Status: a.Status, CheckInTime: a.CheckInTime})
}

// Attendees handles GET /api/events/{id}/attendees. The organizer sees every
// record, others only confirmed attendees.
func (h *EventsHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	_, list, err := h.events.Attendees(r.Context(), r.PathValue("id"), events.Actor{ID: callerID(r)})
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, list)
}

// Sessions handles GET /api/events/{id}/sessions
func (h *EventsHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.Sessions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, list)
}

// Attending handles GET /api/events/user/attending
func (h *EventsHandler) Attending(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.Attending(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, h.views(list))
}

// Organized handles GET /api/events/user/organized
func (h *EventsHandler) Organized(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.Organized(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, h.views(list))
}
