package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventplanner/internal/api/pagination"
	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/audit"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

// UserManagement is the back-office view of user accounts.
type UserManagement interface {
	List(ctx context.Context, filter users.ListFilter, limit, offset int) ([]*users.User, int, error)
	Get(ctx context.Context, id string) (*users.User, error)
	AdminUpdate(ctx context.Context, id string, in users.AdminUpdateInput) (*users.User, error)
	SetActive(ctx context.Context, id string, active bool) (*users.User, error)
	Delete(ctx context.Context, id string) error
}

// AdminUsersHandler serves /api/admin/users.
type AdminUsersHandler struct {
	users       UserManagement
	auditLogger *audit.Logger
	env         string
}

func NewAdminUsersHandler(management UserManagement, auditLogger *audit.Logger, env string) *AdminUsersHandler {
	return &AdminUsersHandler{users: management, auditLogger: auditLogger, env: env}
}

// List handles GET /api/admin/users?search=&status=
func (h *AdminUsersHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := users.ListFilter{Search: strings.TrimSpace(query.Get("search"))}
	switch strings.TrimSpace(query.Get("status")) {
	case "":
	case "active":
		active := true
		filter.Active = &active
	case "inactive":
		active := false
		filter.Active = &active
	default:
		writeError(w, r, validation.New("status", "must be active or inactive"), h.env)
		return
	}

	page := pagination.Parse(query)
	list, total, err := h.users.List(r.Context(), filter, page.Limit, page.Offset())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Paginated(w, list, page.Meta(total))
}

// Get handles GET /api/admin/users/{id}
func (h *AdminUsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, u)
}

// Update handles PUT /api/admin/users/{id}
func (h *AdminUsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in users.AdminUpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	id := r.PathValue("id")
	u, err := h.users.AdminUpdate(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "user.updated", "user", id, "success", nil)
	response.Message(w, "User updated successfully", u)
}

// Activate handles PUT /api/admin/users/{id}/activate
func (h *AdminUsersHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles PUT /api/admin/users/{id}/deactivate
func (h *AdminUsersHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *AdminUsersHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := r.PathValue("id")
	u, err := h.users.SetActive(r.Context(), id, active)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	action, message := "user.activated", "User activated successfully"
	if !active {
		action, message = "user.deactivated", "User deactivated successfully"
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), action, "user", id, "success", nil)
	response.Message(w, message, u)
}

// Delete handles DELETE /api/admin/users/{id}. The user's events and
// attendee records go with the account.
func (h *AdminUsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "user.deleted", "user", id, "success", nil)
	response.Message(w, "User deleted successfully", nil)
}
