package users

import (
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
)

type SocialLinks struct {
	LinkedIn string `json:"linkedin,omitempty" validate:"omitempty,url"`
	Twitter  string `json:"twitter,omitempty"`
	Website  string `json:"website,omitempty" validate:"omitempty,url"`
}

// User is an attendee/organizer account. Event membership is not stored here;
// it is read from attendee records and event ownership on demand.
type User struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	ProfileImage string      `json:"profileImage,omitempty"`
	Bio          string      `json:"bio,omitempty"`
	Company      string      `json:"company,omitempty"`
	JobTitle     string      `json:"jobTitle,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	Interests    []string    `json:"interests"`
	SocialLinks  SocialLinks `json:"socialLinks"`
	IsActive     bool        `json:"isActive"`
	LastLogin    *time.Time  `json:"lastLogin,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`

	Password string `json:"-"`
}

func (u *User) CredentialID() string { return u.ID }

func (u *User) PasswordHash() string { return u.Password }

func (u *User) Identity() auth.UserIdentity {
	return auth.UserIdentity{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Person is the slice of the user embedded into event payloads.
func (u *User) Person() events.Person {
	return events.Person{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Company:      u.Company,
		JobTitle:     u.JobTitle,
		ProfileImage: u.ProfileImage,
		Bio:          u.Bio,
	}
}

// Card is the public directory entry used by search, suggestions and connections.
type Card struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Company      string   `json:"company,omitempty"`
	JobTitle     string   `json:"jobTitle,omitempty"`
	ProfileImage string   `json:"profileImage,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Interests    []string `json:"interests,omitempty"`
}

func (u *User) Card() Card {
	return Card{
		ID:           u.ID,
		Name:         u.Name,
		Company:      u.Company,
		JobTitle:     u.JobTitle,
		ProfileImage: u.ProfileImage,
		Bio:          u.Bio,
		Interests:    u.Interests,
	}
}

func Cards(list []*User) []Card {
	out := make([]Card, 0, len(list))
	for _, u := range list {
		out = append(out, u.Card())
	}
	return out
}

// Connection is one edge of the symmetric connection graph, seen from its owner.
type Connection struct {
	User  *User
	Since time.Time
}

// Profile is the caller's own profile with derived event lists.
type Profile struct {
	*User
	EventsAttending []events.Summary `json:"eventsAttending"`
	EventsOrganized []events.Summary `json:"eventsOrganized"`
	Connections     []Card           `json:"connections"`
}

// PublicProfile is another user's profile as seen by viewer. Email is omitted.
type PublicProfile struct {
	Card
	SocialLinks       SocialLinks      `json:"socialLinks"`
	CreatedAt         time.Time        `json:"createdAt"`
	EventsOrganized   []events.Summary `json:"eventsOrganized"`
	IsConnected       bool             `json:"isConnected"`
	MutualConnections int              `json:"mutualConnections"`
}
