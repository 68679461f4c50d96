package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/eventplanner/internal/domain/accounts"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/ids"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
	"github.com/Togather-Foundation/eventplanner/internal/sanitize"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

// Error types for user domain operations
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("user already exists with this email")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInactive             = errors.New("account is deactivated")
	ErrSelfConnection       = errors.New("cannot send connection request to yourself")
	ErrAlreadyConnected     = errors.New("already connected with this user")
	ErrProfileUnavailable   = errors.New("user profile not available")
	ErrRegistrationDisabled = errors.New("registration is currently disabled")
)

const (
	// SuggestionLimit caps the suggestions list.
	SuggestionLimit = 20

	// NearbyLimit caps the nearby list.
	NearbyLimit = 10
)

// ListFilter narrows the admin user listing.
type ListFilter struct {
	Search string
	Active *bool
}

// SuggestionCriteria describes what a suggested user must share with the caller.
// Empty criteria match every user.
type SuggestionCriteria struct {
	Company   string
	JobTitle  string
	Interests []string
}

func (c SuggestionCriteria) Empty() bool {
	return c.Company == "" && c.JobTitle == "" && len(c.Interests) == 0
}

// Repository persists users and the connection graph.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id string, active bool) (*User, error)
	Delete(ctx context.Context, id string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	SetPasswordHash(ctx context.Context, id, hash string) error

	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*User, int, error)
	Search(ctx context.Context, viewerID, query string, limit, offset int) ([]*User, int, error)
	Suggest(ctx context.Context, userID string, criteria SuggestionCriteria, limit int) ([]*User, error)
	RecentlyActive(ctx context.Context, excludeID string, limit int) ([]*User, error)

	// Connect writes both edges in one transaction and returns
	// ErrAlreadyConnected when the edge exists.
	Connect(ctx context.Context, userID, otherID string, at time.Time) error
	Disconnect(ctx context.Context, userID, otherID string) error
	Connections(ctx context.Context, userID string) ([]Connection, error)
	IsConnected(ctx context.Context, userID, otherID string) (bool, error)
	MutualConnections(ctx context.Context, userID, otherID string) (int, error)
}

// EventLookup supplies the derived event lists of a profile.
type EventLookup interface {
	ListAttending(ctx context.Context, userID string) ([]*events.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*events.Event, error)
}

// SignupGate reports whether self-service registration is open.
type SignupGate func(ctx context.Context) (bool, error)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,min=2"`
	Company  string `json:"company"`
	JobTitle string `json:"jobTitle"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput is a partial self-service profile update.
type ProfileInput struct {
	Name         *string      `json:"name" validate:"omitempty,min=2"`
	Company      *string      `json:"company"`
	JobTitle     *string      `json:"jobTitle"`
	Bio          *string      `json:"bio" validate:"omitempty,max=500"`
	Phone        *string      `json:"phone"`
	ProfileImage *string      `json:"profileImage" validate:"omitempty,url"`
	Interests    []string     `json:"interests"`
	SocialLinks  *SocialLinks `json:"socialLinks"`
}

// AdminUpdateInput is the back-office edit of a user.
type AdminUpdateInput struct {
	Name     *string `json:"name" validate:"omitempty,min=2"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Company  *string `json:"company"`
	JobTitle *string `json:"jobTitle"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
	Phone    *string `json:"phone"`
}

type Service struct {
	repo   Repository
	events EventLookup
	signup SignupGate
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(repo Repository, eventLookup EventLookup, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: eventLookup,
		now:    time.Now,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// WithSignupGate installs the check consulted before self-service registration.
func (s *Service) WithSignupGate(gate SignupGate) *Service {
	s.signup = gate
	return s
}

// Credentials exposes the repository as a password store.
func (s *Service) Credentials() accounts.Store {
	return credentialStore{repo: s.repo}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if s.signup != nil {
		open, err := s.signup(ctx)
		if err != nil {
			return nil, fmt.Errorf("check signup gate: %w", err)
		}
		if !open {
			return nil, ErrRegistrationDisabled
		}
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}
	hash, err := accounts.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &User{
		ID:        id,
		Email:     email,
		Name:      sanitize.Text(in.Name),
		Company:   sanitize.Text(in.Company),
		JobTitle:  sanitize.Text(in.JobTitle),
		Interests: []string{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Password:  hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	metrics.Signups.Inc()
	s.logger.Info().Str("user_id", u.ID).Msg("user registered")
	return u, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.LoginAttempts.WithLabelValues("user", "unknown").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		metrics.LoginAttempts.WithLabelValues("user", "inactive").Inc()
		return nil, ErrInactive
	}
	if !accounts.CheckPassword(u, in.Password) {
		metrics.LoginAttempts.WithLabelValues("user", "bad_password").Inc()
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	u.LastLogin = &now
	metrics.LoginAttempts.WithLabelValues("user", "success").Inc()
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Profile returns the user with attending/organized summaries and connections.
func (s *Service) Profile(ctx context.Context, id string) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		attending, organized []*events.Event
		connections          []Connection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attending, err = s.events.ListAttending(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		organized, err = s.events.ListByOrganizer(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		connections, err = s.repo.Connections(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	cards := make([]Card, 0, len(connections))
	for _, c := range connections {
		cards = append(cards, c.User.Card())
	}
	return &Profile{
		User:            u,
		EventsAttending: events.Summaries(attending),
		EventsOrganized: events.Summaries(organized),
		Connections:     cards,
	}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = sanitize.Text(*in.Name)
	}
	if in.Company != nil {
		u.Company = sanitize.Text(*in.Company)
	}
	if in.JobTitle != nil {
		u.JobTitle = sanitize.Text(*in.JobTitle)
	}
	if in.Bio != nil {
		u.Bio = sanitize.Text(*in.Bio)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.ProfileImage != nil {
		u.ProfileImage = strings.TrimSpace(*in.ProfileImage)
	}
	if in.Interests != nil {
		u.Interests = sanitize.TextSlice(in.Interests)
	}
	if in.SocialLinks != nil {
		u.SocialLinks = SocialLinks{
			LinkedIn: strings.TrimSpace(in.SocialLinks.LinkedIn),
			Twitter:  sanitize.Text(in.SocialLinks.Twitter),
			Website:  strings.TrimSpace(in.SocialLinks.Website),
		}
	}
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) AdminUpdate(ctx context.Context, id string, in AdminUpdateInput) (*User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = sanitize.Text(*in.Name)
	}
	if in.Email != nil {
		u.Email = normalizeEmail(*in.Email)
	}
	if in.Company != nil {
		u.Company = sanitize.Text(*in.Company)
	}
	if in.JobTitle != nil {
		u.JobTitle = sanitize.Text(*in.JobTitle)
	}
	if in.Bio != nil {
		u.Bio = sanitize.Text(*in.Bio)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*User, error) {
	return s.repo.SetActive(ctx, id, active)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// Connect links the two users in both directions. Requests are auto-accepted.
func (s *Service) Connect(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return ErrSelfConnection
	}
	if _, err := s.repo.GetByID(ctx, targetID); err != nil {
		return err
	}
	if err := s.repo.Connect(ctx, userID, targetID, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("target_id", targetID).Msg("connection established")
	return nil
}

func (s *Service) Disconnect(ctx context.Context, userID, targetID string) error {
	return s.repo.Disconnect(ctx, userID, targetID)
}

func (s *Service) Connections(ctx context.Context, userID string) ([]Connection, error) {
	return s.repo.Connections(ctx, userID)
}

// Search matches active users other than the viewer by name, company, job
// title or interest.
func (s *Service) Search(ctx context.Context, viewerID, query string, limit, offset int) ([]*User, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, validation.New("q", "Search query is required")
	}
	return s.repo.Search(ctx, viewerID, query, limit, offset)
}

// Suggestions lists active, unconnected users who share the caller's company,
// an interest or a job title.
func (s *Service) Suggestions(ctx context.Context, userID string) ([]*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	criteria := SuggestionCriteria{
		Company:   u.Company,
		JobTitle:  u.JobTitle,
		Interests: u.Interests,
	}
	return s.repo.Suggest(ctx, userID, criteria, SuggestionLimit)
}

// Nearby has no location data to work with and returns the most recently
// active users instead.
func (s *Service) Nearby(ctx context.Context, userID string) ([]*User, error) {
	return s.repo.RecentlyActive(ctx, userID, NearbyLimit)
}

func (s *Service) PublicProfile(ctx context.Context, viewerID, targetID string) (*PublicProfile, error) {
	u, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrProfileUnavailable
	}

	var (
		organized []*events.Event
		connected bool
		mutual    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		organized, err = s.events.ListByOrganizer(gctx, targetID)
		return err
	})
	g.Go(func() error {
		var err error
		connected, err = s.repo.IsConnected(gctx, viewerID, targetID)
		return err
	})
	g.Go(func() error {
		var err error
		mutual, err = s.repo.MutualConnections(gctx, viewerID, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load public profile: %w", err)
	}

	return &PublicProfile{
		Card:              u.Card(),
		SocialLinks:       u.SocialLinks,
		CreatedAt:         u.CreatedAt,
		EventsOrganized:   events.Summaries(organized),
		IsConnected:       connected,
		MutualConnections: mutual,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type credentialStore struct {
	repo Repository
}

func (c credentialStore) GetCredentials(ctx context.Context, id string) (accounts.Credentialed, error) {
	u, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, accounts.ErrAccountNotFound
		}
		return nil, err
	}
	return u, nil
}

func (c credentialStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return c.repo.SetPasswordHash(ctx, id, hash)
}
