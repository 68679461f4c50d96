package admins

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
	"github.com/Togather-Foundation/eventplanner/internal/domain/accounts"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, a *AdminUser) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*AdminUser, error) {
	args := m.Called(ctx, id)
	if a, ok := args.Get(0).(*AdminUser); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepository) GetByUsername(ctx context.Context, username string) (*AdminUser, error) {
	args := m.Called(ctx, username)
	if a, ok := args.Get(0).(*AdminUser); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepository) List(ctx context.Context) ([]*AdminUser, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*AdminUser), args.Error(1)
}

func (m *mockRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, a *AdminUser) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// UpdateLogin applies fn to the admin registered via the first return value,
// mimicking the row-locked read-modify-write of the real store.
func (m *mockRepository) UpdateLogin(ctx context.Context, id string, fn func(a *AdminUser)) (*AdminUser, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*AdminUser)
	if a != nil {
		fn(a)
	}
	return a, args.Error(1)
}

func (m *mockRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	svc := NewService(repo, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func adminWithPassword(t *testing.T, username, password string) *AdminUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return New("01HYX3KQW7ERTV9XNBM2P8QJZF", username, username+"@example.com", "Staff", auth.RoleUser, string(hash), fixedNow)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown username", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetByUsername", ctx, "ghost").Return(nil, ErrAdminNotFound)

		_, err := newTestService(repo).Login(ctx, " Ghost ", "secret1")

		require.ErrorIs(t, err, ErrInvalidCredentials)
		repo.AssertExpectations(t)
	})

	t.Run("locked account is rejected before password check", func(t *testing.T) {
		a := adminWithPassword(t, "staff", "secret1")
		until := fixedNow.Add(time.Hour)
		a.LockUntil = &until
		repo := new(mockRepository)
		repo.On("GetByUsername", ctx, "staff").Return(a, nil)

		_, err := newTestService(repo).Login(ctx, "staff", "secret1")

		require.ErrorIs(t, err, ErrLocked)
		repo.AssertNotCalled(t, "UpdateLogin", mock.Anything, mock.Anything)
	})

	t.Run("inactive account", func(t *testing.T) {
		a := adminWithPassword(t, "staff", "secret1")
		a.IsActive = false
		repo := new(mockRepository)
		repo.On("GetByUsername", ctx, "staff").Return(a, nil)

		_, err := newTestService(repo).Login(ctx, "staff", "secret1")

		require.ErrorIs(t, err, ErrInactive)
	})

	t.Run("wrong password counts a failure", func(t *testing.T) {
		a := adminWithPassword(t, "staff", "secret1")
		repo := new(mockRepository)
		repo.On("GetByUsername", ctx, "staff").Return(a, nil)
		repo.On("UpdateLogin", ctx, a.ID).Return(a, nil)

		_, err := newTestService(repo).Login(ctx, "staff", "wrong")

		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, 1, a.LoginAttempts)
		repo.AssertExpectations(t)
	})

	t.Run("fifth failure locks", func(t *testing.T) {
		a := adminWithPassword(t, "staff", "secret1")
		a.LoginAttempts = MaxLoginAttempts - 1
		repo := new(mockRepository)
		repo.On("GetByUsername", ctx, "staff").Return(a, nil)
		repo.On("UpdateLogin", ctx, a.ID).Return(a, nil)

		_, err := newTestService(repo).Login(ctx, "staff", "wrong")

		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.True(t, a.IsLocked(fixedNow))
	})

	t.Run("success resets counters", func(t *testing.T) {
		a := adminWithPassword(t, "staff", "secret1")
		a.LoginAttempts = 3
		repo := new(mockRepository)
		repo.On("GetByUsername", ctx, "staff").Return(a, nil)
		repo.On("UpdateLogin", ctx, a.ID).Return(a, nil)

		got, err := newTestService(repo).Login(ctx, "staff", "secret1")

		require.NoError(t, err)
		assert.Zero(t, got.LoginAttempts)
		require.NotNil(t, got.LastLogin)
		assert.Equal(t, fixedNow, *got.LastLogin)
	})
}

func TestCreateOwner(t *testing.T) {
	ctx := context.Background()
	in := OwnerInput{Username: "Root", Email: "Root@Example.com", Password: "secret1", Name: "Root User"}

	t.Run("first admin becomes owner", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("Count", ctx).Return(0, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*admins.AdminUser")).Return(nil)

		a, err := newTestService(repo).CreateOwner(ctx, in)

		require.NoError(t, err)
		assert.Equal(t, auth.RoleOwner, a.Role)
		assert.Equal(t, "root", a.Username)
		assert.Equal(t, "root@example.com", a.Email)
		assert.True(t, a.Permissions.SystemSettings)
		assert.True(t, accounts.CheckPassword(a, "secret1"))
	})

	t.Run("refused once initialized", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("Count", ctx).Return(1, nil)

		_, err := newTestService(repo).CreateOwner(ctx, in)

		require.ErrorIs(t, err, ErrAlreadyInitialized)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestCreateDefaultsToUserRole(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("Create", ctx, mock.AnythingOfType("*admins.AdminUser")).Return(nil)

	a, err := newTestService(repo).Create(ctx, "owner-id", CreateInput{
		Username: "helper", Email: "helper@example.com", Password: "secret1", Name: "Helper",
	})

	require.NoError(t, err)
	assert.Equal(t, auth.RoleUser, a.Role)
	assert.Equal(t, "owner-id", a.CreatedBy)
	assert.False(t, a.Permissions.CreateAdmins)
}

func TestCreateRejectsInvalidRole(t *testing.T) {
	_, err := newTestService(new(mockRepository)).Create(context.Background(), "owner-id", CreateInput{
		Username: "helper", Email: "helper@example.com", Password: "secret1", Name: "Helper", Role: "superuser",
	})

	require.Error(t, err)
}

func TestUpdateRoleRecomputesPermissions(t *testing.T) {
	ctx := context.Background()
	a := adminWithPassword(t, "staff", "secret1")
	repo := new(mockRepository)
	repo.On("GetByID", ctx, a.ID).Return(a, nil)
	repo.On("Update", ctx, a).Return(nil)
	role := "owner"

	got, err := newTestService(repo).Update(ctx, a.ID, UpdateInput{Role: &role})

	require.NoError(t, err)
	assert.Equal(t, auth.PermissionsForRole(auth.RoleOwner), got.Permissions)
}

func TestDeleteProtectsBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	a := adminWithPassword(t, ProtectedUsername, "secret1")
	repo := new(mockRepository)
	repo.On("GetByID", ctx, a.ID).Return(a, nil)

	err := newTestService(repo).Delete(ctx, a.ID)

	require.ErrorIs(t, err, ErrProtectedAdmin)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestChangePasswordThroughCredentialStore(t *testing.T) {
	ctx := context.Background()
	a := adminWithPassword(t, "staff", "secret1")
	repo := new(mockRepository)
	repo.On("GetByID", ctx, a.ID).Return(a, nil)
	repo.On("SetPasswordHash", ctx, a.ID, mock.AnythingOfType("string")).Return(nil)

	err := accounts.ChangePassword(ctx, newTestService(repo).Credentials(), a.ID, "secret1", "secret2")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}
