package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/audit"
	"github.com/Togather-Foundation/eventplanner/internal/domain/admins"
)

// AdminDirectory manages back-office accounts.
type AdminDirectory interface {
	List(ctx context.Context) ([]*admins.AdminUser, error)
	Get(ctx context.Context, id string) (*admins.AdminUser, error)
	Create(ctx context.Context, createdBy string, in admins.CreateInput) (*admins.AdminUser, error)
	Update(ctx context.Context, id string, in admins.UpdateInput) (*admins.AdminUser, error)
	Delete(ctx context.Context, id string) error
}

// AdminAccountsHandler serves /api/admin/admins.
type AdminAccountsHandler struct {
	admins      AdminDirectory
	auditLogger *audit.Logger
	env         string
}

func NewAdminAccountsHandler(directory AdminDirectory, auditLogger *audit.Logger, env string) *AdminAccountsHandler {
	return &AdminAccountsHandler{admins: directory, auditLogger: auditLogger, env: env}
}

func profiles(list []*admins.AdminUser) []admins.Profile {
	out := make([]admins.Profile, 0, len(list))
	for _, a := range list {
		out = append(out, a.Profile())
	}
	return out
}

// List handles GET /api/admin/admins
func (h *AdminAccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.admins.List(r.Context())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, profiles(list))
}

// Get handles GET /api/admin/admins/{id}
func (h *AdminAccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.admins.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, a.Profile())
}

// Create handles POST /api/admin/admins
func (h *AdminAccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in admins.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	a, err := h.admins.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "admin.created", "admin", a.ID, "success", map[string]string{
		"username": a.Username,
		"role":     string(a.Role),
	})
	response.Created(w, "Admin created successfully", a.Profile())
}

// Update handles PUT /api/admin/admins/{id}
func (h *AdminAccountsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in admins.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	id := r.PathValue("id")
	a, err := h.admins.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "admin.updated", "admin", id, "success", nil)
	response.Message(w, "Admin updated successfully", a.Profile())
}

// Delete handles DELETE /api/admin/admins/{id}
func (h *AdminAccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.admins.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "admin.deleted", "admin", id, "success", nil)
	response.Message(w, "Admin deleted successfully", nil)
}
