package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/sanitize"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

type LocationInput struct {
	Venue       string       `json:"venue" validate:"required"`
	Address     string       `json:"address" validate:"required"`
	City        string       `json:"city" validate:"required"`
	State       string       `json:"state"`
	Country     string       `json:"country" validate:"required"`
	ZipCode     string       `json:"zipCode"`
	Coordinates *Coordinates `json:"coordinates"`
}

type SettingsInput struct {
	RegistrationOpen     *bool   `json:"registrationOpen"`
	RequireApproval      *bool   `json:"requireApproval"`
	AllowWaitlist        *bool   `json:"allowWaitlist"`
	ShowAttendeesCount   *bool   `json:"showAttendeesCount"`
	AllowCancellation    *bool   `json:"allowCancellation"`
	CancellationDeadline *string `json:"cancellationDeadline"`
}

type CreateInput struct {
	Title       string         `json:"title" validate:"required,min=3,max=200"`
	Description string         `json:"description" validate:"required,min=10,max=2000"`
	Category    string         `json:"category" validate:"required,oneof=conference workshop networking seminar social other"`
	DateTime    string         `json:"dateTime" validate:"required"`
	EndDateTime string         `json:"endDateTime" validate:"required"`
	Location    LocationInput  `json:"location"`
	IsVirtual   bool           `json:"isVirtual"`
	VirtualLink string         `json:"virtualLink" validate:"required_if=IsVirtual true"`
	Capacity    int            `json:"capacity" validate:"min=1"`
	Price       *float64       `json:"price" validate:"required,min=0"`
	Currency    string         `json:"currency" validate:"omitempty,oneof=USD EUR GBP CAD AUD"`
	Images      []Image        `json:"images"`
	CoverImage  string         `json:"coverImage"`
	Tags        []string       `json:"tags"`
	Sessions    []Session      `json:"sessions"`
	Sponsors    []Sponsor      `json:"sponsors"`
	Settings    *SettingsInput `json:"settings"`
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string        `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string        `json:"description" validate:"omitempty,min=10,max=2000"`
	Category    *string        `json:"category" validate:"omitempty,oneof=conference workshop networking seminar social other"`
	Status      *string        `json:"status" validate:"omitempty,oneof=draft active completed cancelled"`
	DateTime    *string        `json:"dateTime"`
	EndDateTime *string        `json:"endDateTime"`
	Location    *LocationInput `json:"location"`
	IsVirtual   *bool          `json:"isVirtual"`
	VirtualLink *string        `json:"virtualLink"`
	Capacity    *int           `json:"capacity" validate:"omitempty,min=1"`
	Price       *float64       `json:"price" validate:"omitempty,min=0"`
	Currency    *string        `json:"currency" validate:"omitempty,oneof=USD EUR GBP CAD AUD"`
	Images      []Image        `json:"images"`
	CoverImage  *string        `json:"coverImage"`
	Tags        []string       `json:"tags"`
	Sessions    []Session      `json:"sessions"`
	Sponsors    []Sponsor      `json:"sponsors"`
	Settings    *SettingsInput `json:"settings"`
}

// Build validates the input and returns a new draft event owned by organizerID.
func (in CreateInput) Build(id, organizerID string, now time.Time) (*Event, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	start, err := parseTimestamp("dateTime", in.DateTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTimestamp("endDateTime", in.EndDateTime)
	if err != nil {
		return nil, err
	}

	e := &Event{
		ID:          id,
		OrganizerID: organizerID,
		Title:       sanitize.Text(in.Title),
		Description: sanitize.HTML(in.Description),
		Category:    Category(in.Category),
		Status:      StatusDraft,
		DateTime:    start,
		EndDateTime: end,
		Location:    in.Location.toLocation(),
		IsVirtual:   in.IsVirtual,
		VirtualLink: strings.TrimSpace(in.VirtualLink),
		Capacity:    in.Capacity,
		Price:       *in.Price,
		Currency:    CurrencyUSD,
		Images:      cleanImages(in.Images),
		CoverImage:  strings.TrimSpace(in.CoverImage),
		Tags:        sanitize.Tags(in.Tags),
		Sessions:    cleanSessions(in.Sessions),
		Sponsors:    cleanSponsors(in.Sponsors),
		Settings:    DefaultSettings(),
		Attendees:   []Attendee{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Currency != "" {
		e.Currency = Currency(in.Currency)
	}
	if in.Settings != nil {
		if err := in.Settings.applyTo(&e.Settings); err != nil {
			return nil, err
		}
	}
	if err := e.validateInvariants(); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply merges the update into e and re-checks the invariants on the merged
// values. It reports whether capacity grew so the caller can fill the waitlist.
func (in UpdateInput) Apply(e *Event, now time.Time) (bool, error) {
	if err := validation.Struct(in); err != nil {
		return false, err
	}

	if in.DateTime != nil {
		t, err := parseTimestamp("dateTime", *in.DateTime)
		if err != nil {
			return false, err
		}
		e.DateTime = t
	}
	if in.EndDateTime != nil {
		t, err := parseTimestamp("endDateTime", *in.EndDateTime)
		if err != nil {
			return false, err
		}
		e.EndDateTime = t
	}
	if in.Title != nil {
		e.Title = sanitize.Text(*in.Title)
	}
	if in.Description != nil {
		e.Description = sanitize.HTML(*in.Description)
	}
	if in.Category != nil {
		e.Category = Category(*in.Category)
	}
	if in.Status != nil {
		e.Status = Status(*in.Status)
	}
	if in.Location != nil {
		e.Location = in.Location.toLocation()
	}
	if in.IsVirtual != nil {
		e.IsVirtual = *in.IsVirtual
	}
	if in.VirtualLink != nil {
		e.VirtualLink = strings.TrimSpace(*in.VirtualLink)
	}
	raised := false
	if in.Capacity != nil {
		raised = *in.Capacity > e.Capacity
		e.Capacity = *in.Capacity
	}
	if in.Price != nil {
		e.Price = *in.Price
	}
	if in.Currency != nil {
		e.Currency = Currency(*in.Currency)
	}
	if in.Images != nil {
		e.Images = cleanImages(in.Images)
	}
	if in.CoverImage != nil {
		e.CoverImage = strings.TrimSpace(*in.CoverImage)
	}
	if in.Tags != nil {
		e.Tags = sanitize.Tags(in.Tags)
	}
	if in.Sessions != nil {
		e.Sessions = cleanSessions(in.Sessions)
	}
	if in.Sponsors != nil {
		e.Sponsors = cleanSponsors(in.Sponsors)
	}
	if in.Settings != nil {
		if err := in.Settings.applyTo(&e.Settings); err != nil {
			return false, err
		}
	}
	if err := e.validateInvariants(); err != nil {
		return false, err
	}
	e.UpdatedAt = now
	return raised, nil
}

func (e *Event) validateInvariants() error {
	var errs validation.Errors
	if !e.EndDateTime.After(e.DateTime) {
		errs = append(errs, validation.FieldError{Field: "endDateTime", Message: "End time must be after start time"})
	}
	if e.IsVirtual && e.VirtualLink == "" {
		errs = append(errs, validation.FieldError{Field: "virtualLink", Message: "is required"})
	}
	errs = append(errs, validation.CollectURLs(map[string]string{
		"virtualLink": e.VirtualLink,
		"coverImage":  e.CoverImage,
	})...)
	for i, img := range e.Images {
		if fe := validation.ValidateURL(img.URL, fmt.Sprintf("images[%d].url", i)); fe != nil {
			errs = append(errs, *fe)
		}
	}
	for _, s := range e.Sponsors {
		if s.Tier != "" && s.Tier != TierPlatinum && s.Tier != TierGold && s.Tier != TierSilver && s.Tier != TierBronze {
			errs = append(errs, validation.FieldError{Field: "sponsors.tier", Message: "must be one of: platinum, gold, silver, bronze"})
			break
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (in LocationInput) toLocation() Location {
	return Location{
		Venue:       sanitize.Text(in.Venue),
		Address:     sanitize.Text(in.Address),
		City:        sanitize.Text(in.City),
		State:       sanitize.Text(in.State),
		Country:     sanitize.Text(in.Country),
		ZipCode:     sanitize.Text(in.ZipCode),
		Coordinates: in.Coordinates,
	}
}

func (in SettingsInput) applyTo(s *Settings) error {
	if in.RegistrationOpen != nil {
		s.RegistrationOpen = *in.RegistrationOpen
	}
	if in.RequireApproval != nil {
		s.RequireApproval = *in.RequireApproval
	}
	if in.AllowWaitlist != nil {
		s.AllowWaitlist = *in.AllowWaitlist
	}
	if in.ShowAttendeesCount != nil {
		s.ShowAttendeesCount = *in.ShowAttendeesCount
	}
	if in.AllowCancellation != nil {
		s.AllowCancellation = *in.AllowCancellation
	}
	if in.CancellationDeadline != nil {
		if strings.TrimSpace(*in.CancellationDeadline) == "" {
			s.CancellationDeadline = nil
			return nil
		}
		t, err := parseTimestamp("settings.cancellationDeadline", *in.CancellationDeadline)
		if err != nil {
			return err
		}
		s.CancellationDeadline = &t
	}
	return nil
}

func parseTimestamp(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, validation.New(field, "must be an ISO 8601 date")
}

func cleanImages(in []Image) []Image {
	out := make([]Image, 0, len(in))
	for _, img := range in {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		out = append(out, Image{URL: strings.TrimSpace(img.URL), Caption: sanitize.Text(img.Caption)})
	}
	return out
}

func cleanSessions(in []Session) []Session {
	out := make([]Session, 0, len(in))
	for _, s := range in {
		s.Title = sanitize.Text(s.Title)
		s.Description = sanitize.HTML(s.Description)
		s.Speaker = sanitize.Text(s.Speaker)
		s.Location = sanitize.Text(s.Location)
		out = append(out, s)
	}
	return out
}

func cleanSponsors(in []Sponsor) []Sponsor {
	out := make([]Sponsor, 0, len(in))
	for _, s := range in {
		s.Name = sanitize.Text(s.Name)
		s.Tier = SponsorTier(strings.ToLower(strings.TrimSpace(string(s.Tier))))
		out = append(out, s)
	}
	return out
}
