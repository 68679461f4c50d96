package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/api/pagination"
	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
)

// UserDirectory is what the /api/users endpoints need from the users service.
type UserDirectory interface {
	Profile(ctx context.Context, id string) (*users.Profile, error)
	UpdateProfile(ctx context.Context, id string, in users.ProfileInput) (*users.User, error)
	Connections(ctx context.Context, userID string) ([]users.Connection, error)
	Connect(ctx context.Context, userID, targetID string) error
	Disconnect(ctx context.Context, userID, targetID string) error
	Search(ctx context.Context, viewerID, query string, limit, offset int) ([]*users.User, int, error)
	Suggestions(ctx context.Context, userID string) ([]*users.User, error)
	Nearby(ctx context.Context, userID string) ([]*users.User, error)
	PublicProfile(ctx context.Context, viewerID, targetID string) (*users.PublicProfile, error)
}

type UsersHandler struct {
	users UserDirectory
	env   string
}

func NewUsersHandler(directory UserDirectory, env string) *UsersHandler {
	return &UsersHandler{users: directory, env: env}
}

type connectionView struct {
	users.Card
	ConnectedAt time.Time `json:"connectedAt"`
}

// GetProfile handles GET /api/users/profile
func (h *UsersHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.Profile(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, profile)
}

// UpdateProfile handles PUT /api/users/profile
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in users.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	u, err := h.users.UpdateProfile(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Message(w, "Profile updated successfully", u)
}

// Connections handles GET /api/users/connections
func (h *UsersHandler) Connections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.users.Connections(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	out := make([]connectionView, 0, len(conns))
	for _, c := range conns {
		out = append(out, connectionView{Card: c.User.Card(), ConnectedAt: c.Since})
	}
	response.OK(w, out)
}

// SendConnection handles POST /api/users/connections/send/{userId}. Requests
// are accepted immediately and connect both users.
func (h *UsersHandler) SendConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Connect(r.Context(), callerID(r), r.PathValue("userId")); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Message(w, "Connection added successfully", nil)
}

// AcceptConnection handles POST /api/users/connections/accept/{userId}
func (h *UsersHandler) AcceptConnection(w http.ResponseWriter, r *http.Request) {
	response.Message(w, "Connection request accepted", nil)
}

// RejectConnection handles POST /api/users/connections/reject/{userId}
func (h *UsersHandler) RejectConnection(w http.ResponseWriter, r *http.Request) {
	response.Message(w, "Connection request rejected", nil)
}

// RemoveConnection handles DELETE /api/users/connections/{userId}
func (h *UsersHandler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Disconnect(r.Context(), callerID(r), r.PathValue("userId")); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Message(w, "Connection removed successfully", nil)
}

// Search handles GET /api/users/search?q=
func (h *UsersHandler) Search(w http.ResponseWriter, r *http.Request) {
	page := pagination.Parse(r.URL.Query())
	found, total, err := h.users.Search(r.Context(), callerID(r), r.URL.Query().Get("q"), page.Limit, page.Offset())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Paginated(w, users.Cards(found), page.Meta(total))
}

// Suggestions handles GET /api/users/suggestions
func (h *UsersHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	found, err := h.users.Suggestions(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, users.Cards(found))
}

// Nearby handles GET /api/users/nearby. Without location data it lists the
// most recently active users.
func (h *UsersHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	found, err := h.users.Nearby(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Message(w, "Location-based features require location permissions", users.Cards(found))
}

// PublicProfile handles GET /api/users/{userId}/public-profile
func (h *UsersHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.PublicProfile(r.Context(), callerID(r), r.PathValue("userId"))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, profile)
}
