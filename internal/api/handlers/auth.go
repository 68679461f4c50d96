package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/eventplanner/internal/api/middleware"
	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/audit"
	"github.com/Togather-Foundation/eventplanner/internal/auth"
	"github.com/Togather-Foundation/eventplanner/internal/domain/accounts"
	"github.com/Togather-Foundation/eventplanner/internal/domain/admins"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

// UserAccounts is the user side of authentication.
type UserAccounts interface {
	Register(ctx context.Context, in users.RegisterInput) (*users.User, error)
	Login(ctx context.Context, in users.LoginInput) (*users.User, error)
	Get(ctx context.Context, id string) (*users.User, error)
	UpdateProfile(ctx context.Context, id string, in users.ProfileInput) (*users.User, error)
	Credentials() accounts.Store
}

// AdminAccounts is the admin side of authentication.
type AdminAccounts interface {
	Login(ctx context.Context, username, password string) (*admins.AdminUser, error)
	CreateOwner(ctx context.Context, in admins.OwnerInput) (*admins.AdminUser, error)
	Get(ctx context.Context, id string) (*admins.AdminUser, error)
	UpdateProfile(ctx context.Context, id string, name, email *string) (*admins.AdminUser, error)
	Credentials() accounts.Store
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
	users       UserAccounts
	admins      AdminAccounts
	tokens      *auth.JWTManager
	cookie      CookieConfig
	auditLogger *audit.Logger
	env         string
}

func NewAuthHandler(userAccounts UserAccounts, adminAccounts AdminAccounts, tokens *auth.JWTManager, cookie CookieConfig, auditLogger *audit.Logger, env string) *AuthHandler {
	return &AuthHandler{
		users:       userAccounts,
		admins:      adminAccounts,
		tokens:      tokens,
		cookie:      cookie,
		auditLogger: auditLogger,
		env:         env,
	}
}

type userSession struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

type adminSession struct {
	Token string         `json:"token"`
	Admin admins.Profile `json:"admin"`
}

type adminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type adminProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=2"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	u, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	token, err := h.tokens.GenerateUser(u.Identity())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.cookie.set(w, token)
	response.Created(w, "User registered successfully", userSession{Token: token, User: u})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in users.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	u, err := h.users.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	token, err := h.tokens.GenerateUser(u.Identity())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.cookie.set(w, token)
	response.Message(w, "Login successful", userSession{Token: token, User: u})
}

// ForgotPassword handles POST /api/auth/forgot-password. Reset mail is not
// implemented.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	response.Message(w, "Password reset functionality coming soon", nil)
}

// ResetPassword handles POST /api/auth/reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	response.Message(w, "Password reset functionality coming soon", nil)
}

// AdminLogin handles POST /api/auth/admin/login
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err, h.env)
		return
	}

	a, err := h.admins.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.auditLogger.LogFromRequest(r, audit.Actor{ID: req.Username, Type: auth.TypeAdmin}, "admin.login", "admin", "", "failure", nil)
		writeError(w, r, err, h.env)
		return
	}
	token, err := h.tokens.GenerateAdmin(a.Identity())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, audit.Actor{ID: a.ID, Type: auth.TypeAdmin}, "admin.login", "admin", a.ID, "success", nil)
	h.cookie.set(w, token)
	response.Message(w, "Login successful", adminSession{Token: token, Admin: a.Profile()})
}

// CreateOwner handles POST /api/auth/admin/create-owner. It only succeeds
// while no admin account exists.
func (h *AuthHandler) CreateOwner(w http.ResponseWriter, r *http.Request) {
	var in admins.OwnerInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	a, err := h.admins.CreateOwner(r.Context(), in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	token, err := h.tokens.GenerateAdmin(a.Identity())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, audit.Actor{ID: a.ID, Type: auth.TypeAdmin}, "admin.owner_created", "admin", a.ID, "success", nil)
	h.cookie.set(w, token)
	response.Created(w, "Owner account created successfully", adminSession{Token: token, Admin: a.Profile()})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := callerID(r)
	if isAdminRequest(r) {
		a, err := h.admins.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, h.env)
			return
		}
		response.OK(w, map[string]any{"admin": a.Profile()})
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, map[string]any{"user": u})
}

// UpdateMe handles PUT /api/auth/me. Admins may change name and email;
// users may change their profile fields.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id := callerID(r)
	if isAdminRequest(r) {
		var req adminProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, h.env)
			return
		}
		if err := validation.Struct(req); err != nil {
			writeError(w, r, err, h.env)
			return
		}
		a, err := h.admins.UpdateProfile(r.Context(), id, req.Name, req.Email)
		if err != nil {
			writeError(w, r, err, h.env)
			return
		}
		response.Message(w, "Profile updated successfully", map[string]any{"admin": a.Profile()})
		return
	}

	var in users.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	u, err := h.users.UpdateProfile(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Message(w, "Profile updated successfully", map[string]any{"user": u})
}

// ChangePassword handles POST /api/auth/change-password. The password store
// follows the token's account type.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}

	store := h.users.Credentials()
	if isAdminRequest(r) {
		store = h.admins.Credentials()
	}
	if err := accounts.ChangePassword(r.Context(), store, callerID(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "account.password_changed", auditActor(r).Type, callerID(r), "success", nil)
	response.Message(w, "Password updated successfully", nil)
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so logging out
// only clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookie.clear(w)
	response.Message(w, "Logged out successfully", nil)
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.Refresh(middleware.ClaimsFrom(r))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.cookie.set(w, token)
	response.Message(w, "Token refreshed", map[string]string{"token": token})
}
