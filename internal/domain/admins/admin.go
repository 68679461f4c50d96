package admins

import (
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
)

const (
	// MaxLoginAttempts is the number of consecutive failures that locks an account.
	MaxLoginAttempts = 5

	// LockDuration is how long a locked account stays locked.
	LockDuration = 2 * time.Hour

	// ProtectedUsername is the bootstrap account that cannot be deleted.
	ProtectedUsername = "admin"
)

// AdminUser is a back-office account. Permissions always follow the role and
// are recomputed by SetRole; nothing else writes them.
type AdminUser struct {
	ID            string           `json:"id"`
	Username      string           `json:"username"`
	Email         string           `json:"email"`
	Name          string           `json:"name"`
	Role          auth.Role        `json:"role"`
	Permissions   auth.Permissions `json:"permissions"`
	IsActive      bool             `json:"isActive"`
	LastLogin     *time.Time       `json:"lastLogin,omitempty"`
	LoginAttempts int              `json:"loginAttempts"`
	LockUntil     *time.Time       `json:"lockUntil,omitempty"`
	CreatedBy     string           `json:"createdBy,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`

	Password string `json:"-"`
}

// New builds an active admin with the permissions of role.
func New(id, username, email, name string, role auth.Role, passwordHash string, now time.Time) *AdminUser {
	a := &AdminUser{
		ID:        id,
		Username:  username,
		Email:     email,
		Name:      name,
		IsActive:  true,
		Password:  passwordHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a.SetRole(role)
	return a
}

func (a *AdminUser) CredentialID() string { return a.ID }

func (a *AdminUser) PasswordHash() string { return a.Password }

// SetRole changes the role and derives the matching permission set.
func (a *AdminUser) SetRole(role auth.Role) {
	a.Role = role
	a.Permissions = auth.PermissionsForRole(role)
}

// IsLocked reports whether a lock is in force at now.
func (a *AdminUser) IsLocked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// RecordFailedLogin counts a failed password attempt. An expired lock starts
// the count over at one; reaching MaxLoginAttempts locks the account.
func (a *AdminUser) RecordFailedLogin(now time.Time) {
	if a.LockUntil != nil && !a.LockUntil.After(now) {
		a.LoginAttempts = 1
		a.LockUntil = nil
		return
	}
	a.LoginAttempts++
	if a.LoginAttempts >= MaxLoginAttempts && !a.IsLocked(now) {
		until := now.Add(LockDuration)
		a.LockUntil = &until
	}
}

// RecordSuccessfulLogin clears the failure count and stamps LastLogin.
func (a *AdminUser) RecordSuccessfulLogin(now time.Time) {
	a.LoginAttempts = 0
	a.LockUntil = nil
	at := now
	a.LastLogin = &at
}

// Profile is the admin shape returned by auth endpoints.
type Profile struct {
	ID          string           `json:"id"`
	Username    string           `json:"username"`
	Email       string           `json:"email"`
	Name        string           `json:"name"`
	Role        auth.Role        `json:"role"`
	Permissions auth.Permissions `json:"permissions"`
}

func (a *AdminUser) Profile() Profile {
	return Profile{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Name:        a.Name,
		Role:        a.Role,
		Permissions: a.Permissions,
	}
}

// Identity is the token subject for this admin.
func (a *AdminUser) Identity() auth.AdminIdentity {
	return auth.AdminIdentity{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Role:        a.Role,
		Permissions: a.Permissions,
	}
}
