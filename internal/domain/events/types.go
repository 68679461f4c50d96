package events

import (
	"time"
)

type Category string

const (
	CategoryConference Category = "conference"
	CategoryWorkshop   Category = "workshop"
	CategoryNetworking Category = "networking"
	CategorySeminar    Category = "seminar"
	CategorySocial     Category = "social"
	CategoryOther      Category = "other"
)

var Categories = []Category{
	CategoryConference, CategoryWorkshop, CategoryNetworking,
	CategorySeminar, CategorySocial, CategoryOther,
}

func (c Category) Valid() bool {
	for _, candidate := range Categories {
		if c == candidate {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an event.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var Statuses = []Status{StatusDraft, StatusActive, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
)

func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyCAD, CurrencyAUD:
		return true
	}
	return false
}

// AttendeeStatus is the state of one (event, user) registration.
type AttendeeStatus string

const (
	AttendeeRegistered AttendeeStatus = "registered"
	AttendeeWaitlisted AttendeeStatus = "waitlisted"
	AttendeeAttended   AttendeeStatus = "attended"
	AttendeeCancelled  AttendeeStatus = "cancelled"
)

// HoldsSpot reports whether a record in this state consumes capacity.
func (s AttendeeStatus) HoldsSpot() bool {
	return s == AttendeeRegistered || s == AttendeeAttended
}

type SponsorTier string

const (
	TierPlatinum SponsorTier = "platinum"
	TierGold     SponsorTier = "gold"
	TierSilver   SponsorTier = "silver"
	TierBronze   SponsorTier = "bronze"
)

// Person is the public slice of a user that is embedded into event payloads
// (organizer and attendee details).
type Person struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Company      string `json:"company,omitempty"`
	JobTitle     string `json:"jobTitle,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	Bio          string `json:"bio,omitempty"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Location struct {
	Venue       string       `json:"venue"`
	Address     string       `json:"address"`
	City        string       `json:"city"`
	State       string       `json:"state,omitempty"`
	Country     string       `json:"country"`
	ZipCode     string       `json:"zipCode,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type Image struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type Session struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Speaker     string     `json:"speaker,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Location    string     `json:"location,omitempty"`
}

type Sponsor struct {
	Name    string      `json:"name"`
	Logo    string      `json:"logo,omitempty"`
	Website string      `json:"website,omitempty"`
	Tier    SponsorTier `json:"tier,omitempty"`
}

// Settings govern which registration transitions are legal.
type Settings struct {
	RegistrationOpen     bool       `json:"registrationOpen"`
	RequireApproval      bool       `json:"requireApproval"`
	AllowWaitlist        bool       `json:"allowWaitlist"`
	ShowAttendeesCount   bool       `json:"showAttendeesCount"`
	AllowCancellation    bool       `json:"allowCancellation"`
	CancellationDeadline *time.Time `json:"cancellationDeadline,omitempty"`
}

// DefaultSettings returns the settings applied to newly created events.
func DefaultSettings() Settings {
	return Settings{
		RegistrationOpen:   true,
		AllowWaitlist:      true,
		ShowAttendeesCount: true,
		AllowCancellation:  true,
	}
}

type Analytics struct {
	Views                  int     `json:"views"`
	Shares                 int     `json:"shares"`
	RegistrationConversion float64 `json:"registrationConversion"`
}

// Attendee is one entry in an event's attendee sequence.
type Attendee struct {
	UserID       string         `json:"userId"`
	User         *Person        `json:"user,omitempty"`
	RegisteredAt time.Time      `json:"registeredAt"`
	Status       AttendeeStatus `json:"status"`
	CheckInTime  *time.Time     `json:"checkInTime,omitempty"`
	TicketType   string         `json:"ticketType,omitempty"`

	// Position is the persisted insertion order; zero for records not yet stored.
	Position int64 `json:"-"`
}

type Event struct {
	ID          string     `json:"id"`
	OrganizerID string     `json:"organizerId"`
	Organizer   *Person    `json:"organizer,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Status      Status     `json:"status"`
	DateTime    time.Time  `json:"dateTime"`
	EndDateTime time.Time  `json:"endDateTime"`
	Location    Location   `json:"location"`
	IsVirtual   bool       `json:"isVirtual"`
	VirtualLink string     `json:"virtualLink,omitempty"`
	Capacity    int        `json:"capacity"`
	Price       float64    `json:"price"`
	Currency    Currency   `json:"currency"`
	Images      []Image    `json:"images"`
	CoverImage  string     `json:"coverImage,omitempty"`
	Tags        []string   `json:"tags"`
	Attendees   []Attendee `json:"attendees"`
	Sessions    []Session  `json:"sessions"`
	Sponsors    []Sponsor  `json:"sponsors"`
	Settings    Settings   `json:"settings"`
	Analytics   Analytics  `json:"analytics"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsActive reports whether the event is published and has not started yet.
func (e *Event) IsActive(now time.Time) bool {
	return e.Status == StatusActive && e.DateTime.After(now)
}

// IsOrganizedBy reports whether userID owns the event.
func (e *Event) IsOrganizedBy(userID string) bool {
	return userID != "" && e.OrganizerID == userID
}

// CountByStatus returns how many attendee records are in status.
func (e *Event) CountByStatus(status AttendeeStatus) int {
	n := 0
	for _, a := range e.Attendees {
		if a.Status == status {
			n++
		}
	}
	return n
}

// FilledSpots is the number of records holding capacity (registered + attended).
func (e *Event) FilledSpots() int {
	n := 0
	for _, a := range e.Attendees {
		if a.Status.HoldsSpot() {
			n++
		}
	}
	return n
}

// View is the response shape of an event with its derived fields.
type View struct {
	*Event
	AvailableSpots int  `json:"availableSpots"`
	IsActive       bool `json:"isActive"`
}

// NewView attaches derived fields to e.
func NewView(e *Event, now time.Time) View {
	return View{Event: e, AvailableSpots: e.AvailableSpots(), IsActive: e.IsActive(now)}
}

// Summary is the condensed event shape used in profile listings.
type Summary struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	DateTime time.Time `json:"dateTime"`
	Status   Status    `json:"status"`
	City     string    `json:"city,omitempty"`
	Category Category  `json:"category,omitempty"`
	Price    float64   `json:"price"`
}

// Summarize condenses e for profile listings.
func (e *Event) Summarize() Summary {
	return Summary{
		ID:       e.ID,
		Title:    e.Title,
		DateTime: e.DateTime,
		Status:   e.Status,
		City:     e.Location.City,
		Category: e.Category,
		Price:    e.Price,
	}
}

// Summaries condenses a list of events.
func Summaries(list []*Event) []Summary {
	out := make([]Summary, 0, len(list))
	for _, e := range list {
		out = append(out, e.Summarize())
	}
	return out
}

// SessionList is the response of the sessions endpoint.
type SessionList struct {
	EventTitle string    `json:"eventTitle"`
	Sessions   []Session `json:"sessions"`
}

// AttendeeList is the response of the attendee endpoints.
type AttendeeList struct {
	EventTitle      string     `json:"eventTitle"`
	Attendees       []Attendee `json:"attendees"`
	TotalCount      int        `json:"totalCount"`
	RegisteredCount *int       `json:"registeredCount,omitempty"`
	AttendedCount   *int       `json:"attendedCount,omitempty"`
}
