// Package settings holds the site-wide switches an owner admin can change at
// runtime, and the adapters other services read them through.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/sanitize"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

// ErrNotFound is returned by a Repository that has no stored settings yet.
var ErrNotFound = errors.New("settings not found")

type Settings struct {
	SiteName            string    `json:"siteName"`
	MaintenanceMode     bool      `json:"maintenanceMode"`
	RegistrationEnabled bool      `json:"registrationEnabled"`
	EmailNotifications  bool      `json:"emailNotifications"`
	MaxEventCapacity    int       `json:"maxEventCapacity"`
	UpdatedBy           string    `json:"updatedBy,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Defaults are served until an owner saves settings for the first time.
func Defaults() Settings {
	return Settings{
		SiteName:            "Event Planning App",
		MaintenanceMode:     false,
		RegistrationEnabled: true,
		EmailNotifications:  true,
		MaxEventCapacity:    1000,
	}
}

type Repository interface {
	Get(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// UpdateInput is a partial update; nil fields keep their value.
type UpdateInput struct {
	SiteName            *string `json:"siteName" validate:"omitempty,min=1,max=100"`
	MaintenanceMode     *bool   `json:"maintenanceMode"`
	RegistrationEnabled *bool   `json:"registrationEnabled"`
	EmailNotifications  *bool   `json:"emailNotifications"`
	MaxEventCapacity    *int    `json:"maxEventCapacity" validate:"omitempty,min=1,max=100000"`
}

// cacheTTL bounds how stale a read through the adapters may be. Maintenance
// mode is checked on every request.
const cacheTTL = 5 * time.Second

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	cached   Settings
	cachedAt time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "settings").Logger(),
		now:    time.Now,
	}
}

// Get returns the stored settings, or the defaults when none were saved.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	current, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return current, nil
}

func (s *Service) Update(ctx context.Context, actor string, in UpdateInput) (Settings, error) {
	if err := validation.Struct(in); err != nil {
		return Settings{}, err
	}
	current, err := s.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	if in.SiteName != nil {
		name := sanitize.Text(*in.SiteName)
		if strings.TrimSpace(name) == "" {
			return Settings{}, validation.New("siteName", "must not be empty")
		}
		current.SiteName = name
	}
	if in.MaintenanceMode != nil {
		current.MaintenanceMode = *in.MaintenanceMode
	}
	if in.RegistrationEnabled != nil {
		current.RegistrationEnabled = *in.RegistrationEnabled
	}
	if in.EmailNotifications != nil {
		current.EmailNotifications = *in.EmailNotifications
	}
	if in.MaxEventCapacity != nil {
		current.MaxEventCapacity = *in.MaxEventCapacity
	}
	current.UpdatedBy = actor
	current.UpdatedAt = s.now().UTC()

	if err := s.repo.Save(ctx, current); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}

	s.mu.Lock()
	s.cached, s.cachedAt = current, s.now()
	s.mu.Unlock()

	s.logger.Info().
		Str("actor", actor).
		Bool("maintenance_mode", current.MaintenanceMode).
		Bool("registration_enabled", current.RegistrationEnabled).
		Msg("settings updated")
	return current, nil
}

// snapshot serves reads for the adapters below from a short-lived cache.
func (s *Service) snapshot(ctx context.Context) (Settings, error) {
	s.mu.RLock()
	if !s.cachedAt.IsZero() && s.now().Sub(s.cachedAt) < cacheTTL {
		current := s.cached
		s.mu.RUnlock()
		return current, nil
	}
	s.mu.RUnlock()

	current, err := s.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	s.mu.Lock()
	s.cached, s.cachedAt = current, s.now()
	s.mu.Unlock()
	return current, nil
}

// CapacityLimit is the largest capacity an event may be created with.
func (s *Service) CapacityLimit(ctx context.Context) (int, error) {
	current, err := s.snapshot(ctx)
	return current.MaxEventCapacity, err
}

// SignupsOpen reports whether self-service user registration is enabled.
func (s *Service) SignupsOpen(ctx context.Context) (bool, error) {
	current, err := s.snapshot(ctx)
	return current.RegistrationEnabled, err
}

func (s *Service) MaintenanceMode(ctx context.Context) (bool, error) {
	current, err := s.snapshot(ctx)
	return current.MaintenanceMode, err
}

func (s *Service) EmailEnabled(ctx context.Context) (bool, error) {
	current, err := s.snapshot(ctx)
	return current.EmailNotifications, err
}
