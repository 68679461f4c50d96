package admins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
	"github.com/Togather-Foundation/eventplanner/internal/domain/accounts"
	"github.com/Togather-Foundation/eventplanner/internal/domain/ids"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

var (
	ErrAdminNotFound      = errors.New("admin not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("account is temporarily locked due to multiple failed login attempts")
	ErrInactive           = errors.New("account is deactivated")
	ErrDuplicate          = errors.New("admin with this username or email already exists")
	ErrAlreadyInitialized = errors.New("admin system already initialized")
	ErrProtectedAdmin     = errors.New("cannot delete the main owner admin")
)

// Repository persists admin accounts.
type Repository interface {
	Create(ctx context.Context, a *AdminUser) error
	GetByID(ctx context.Context, id string) (*AdminUser, error)
	GetByUsername(ctx context.Context, username string) (*AdminUser, error)
	List(ctx context.Context) ([]*AdminUser, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, a *AdminUser) error
	Delete(ctx context.Context, id string) error
	// UpdateLogin locks the admin row, applies fn and stores the login fields.
	UpdateLogin(ctx context.Context, id string, fn func(a *AdminUser)) (*AdminUser, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
}

type CreateInput struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,min=2"`
	Role     string `json:"role" validate:"omitempty,oneof=owner user"`
}

// OwnerInput is the one-time bootstrap payload.
type OwnerInput struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,min=2"`
}

type UpdateInput struct {
	Email *string `json:"email" validate:"omitempty,email"`
	Name  *string `json:"name" validate:"omitempty,min=2"`
	Role  *string `json:"role" validate:"omitempty,oneof=owner user"`
}

type Service struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("component", "admins").Logger(),
	}
}

// Credentials exposes the repository as a password store.
func (s *Service) Credentials() accounts.Store {
	return credentialStore{repo: s.repo}
}

// Login authenticates by username. Failures are counted under a row lock so
// concurrent attempts cannot skip the lockout threshold.
func (s *Service) Login(ctx context.Context, username, password string) (*AdminUser, error) {
	a, err := s.repo.GetByUsername(ctx, normalize(username))
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			metrics.LoginAttempts.WithLabelValues("admin", "unknown").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now().UTC()
	if a.IsLocked(now) {
		metrics.LoginAttempts.WithLabelValues("admin", "locked").Inc()
		return nil, ErrLocked
	}
	if !a.IsActive {
		metrics.LoginAttempts.WithLabelValues("admin", "inactive").Inc()
		return nil, ErrInactive
	}

	if !accounts.CheckPassword(a, password) {
		updated, err := s.repo.UpdateLogin(ctx, a.ID, func(locked *AdminUser) {
			locked.RecordFailedLogin(now)
		})
		if err != nil {
			return nil, fmt.Errorf("record failed login: %w", err)
		}
		if updated.IsLocked(now) {
			s.logger.Warn().Str("admin_id", a.ID).Time("lock_until", *updated.LockUntil).Msg("admin account locked")
		}
		metrics.LoginAttempts.WithLabelValues("admin", "bad_password").Inc()
		return nil, ErrInvalidCredentials
	}

	updated, err := s.repo.UpdateLogin(ctx, a.ID, func(locked *AdminUser) {
		locked.RecordSuccessfulLogin(now)
	})
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	metrics.LoginAttempts.WithLabelValues("admin", "success").Inc()
	return updated, nil
}

// CreateOwner creates the first admin. It fails once any admin exists.
func (s *Service) CreateOwner(ctx context.Context, in OwnerInput) (*AdminUser, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil, ErrAlreadyInitialized
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return s.create(ctx, in.Username, in.Email, in.Password, in.Name, auth.RoleOwner, "")
}

func (s *Service) Create(ctx context.Context, createdBy string, in CreateInput) (*AdminUser, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	role := auth.RoleUser
	if in.Role != "" {
		role, _ = auth.ParseRole(in.Role)
	}
	return s.create(ctx, in.Username, in.Email, in.Password, in.Name, role, createdBy)
}

func (s *Service) create(ctx context.Context, username, email, password, name string, role auth.Role, createdBy string) (*AdminUser, error) {
	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate admin id: %w", err)
	}
	hash, err := accounts.HashPassword(password)
	if err != nil {
		return nil, err
	}
	a := New(id, normalize(username), normalize(email), strings.TrimSpace(name), role, hash, s.now().UTC())
	a.CreatedBy = createdBy
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Str("admin_id", a.ID).Str("role", string(a.Role)).Msg("admin created")
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*AdminUser, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*AdminUser, error) {
	return s.repo.List(ctx)
}

// Update changes email, name and role. A role change re-derives permissions.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*AdminUser, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		a.Email = normalize(*in.Email)
	}
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
	}
	if in.Role != nil {
		role, _ := auth.ParseRole(*in.Role)
		a.SetRole(role)
	}
	a.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateProfile is the self-service variant: only name and email.
func (s *Service) UpdateProfile(ctx context.Context, id string, name, email *string) (*AdminUser, error) {
	return s.Update(ctx, id, UpdateInput{Name: name, Email: email})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Username == ProtectedUsername {
		return ErrProtectedAdmin
	}
	return s.repo.Delete(ctx, id)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type credentialStore struct {
	repo Repository
}

func (c credentialStore) GetCredentials(ctx context.Context, id string) (accounts.Credentialed, error) {
	a, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			return nil, accounts.ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (c credentialStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return c.repo.SetPasswordHash(ctx, id, hash)
}
