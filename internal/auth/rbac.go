package auth

import "strings"

// Role is an admin account role.
type Role string

const (
	RoleOwner Role = "owner"
	RoleUser  Role = "user"
)

// Permission names a single admin capability flag.
type Permission string

const (
	PermCreateAdmins    Permission = "createAdmins"
	PermManageUsers     Permission = "manageUsers"
	PermManageEvents    Permission = "manageEvents"
	PermViewAnalytics   Permission = "viewAnalytics"
	PermModerateContent Permission = "moderateContent"
	PermSystemSettings  Permission = "systemSettings"
	PermDeleteData      Permission = "deleteData"
)

// Permissions is the fixed permission set of an admin account.
type Permissions struct {
	CreateAdmins    bool `json:"createAdmins"`
	ManageUsers     bool `json:"manageUsers"`
	ManageEvents    bool `json:"manageEvents"`
	ViewAnalytics   bool `json:"viewAnalytics"`
	ModerateContent bool `json:"moderateContent"`
	SystemSettings  bool `json:"systemSettings"`
	DeleteData      bool `json:"deleteData"`
}

// PermissionsForRole returns the permission set granted to role. Owners get
// every permission; any other role gets the day-to-day management subset.
func PermissionsForRole(role Role) Permissions {
	if role == RoleOwner {
		return Permissions{
			CreateAdmins:    true,
			ManageUsers:     true,
			ManageEvents:    true,
			ViewAnalytics:   true,
			ModerateContent: true,
			SystemSettings:  true,
			DeleteData:      true,
		}
	}
	return Permissions{
		ManageUsers:     true,
		ManageEvents:    true,
		ViewAnalytics:   true,
		ModerateContent: true,
	}
}

// Has reports whether the set grants perm.
func (p Permissions) Has(perm Permission) bool {
	switch perm {
	case PermCreateAdmins:
		return p.CreateAdmins
	case PermManageUsers:
		return p.ManageUsers
	case PermManageEvents:
		return p.ManageEvents
	case PermViewAnalytics:
		return p.ViewAnalytics
	case PermModerateContent:
		return p.ModerateContent
	case PermSystemSettings:
		return p.SystemSettings
	case PermDeleteData:
		return p.DeleteData
	default:
		return false
	}
}

// ParseRole validates a role string. Unknown roles are rejected rather than
// defaulted so that admin creation cannot silently downgrade.
func ParseRole(role string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(role))) {
	case RoleOwner:
		return RoleOwner, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

func HasRole(role string, allowed ...Role) bool {
	current, ok := ParseRole(role)
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}

func IsOwner(role string) bool {
	return HasRole(role, RoleOwner)
}
