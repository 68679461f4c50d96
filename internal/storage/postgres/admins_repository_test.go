package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
	"github.com/Togather-Foundation/eventplanner/internal/domain/admins"
)

func insertAdmin(t *testing.T, repo *Repository, username string, role auth.Role, createdBy string) *admins.AdminUser {
	t.Helper()
	a := admins.New(newID(t), username, username+"@example.com", "Admin "+username, role, "hash", time.Now().UTC().Truncate(time.Microsecond))
	a.CreatedBy = createdBy
	require.NoError(t, repo.Admins().Create(context.Background(), a))
	return a
}

func TestAdminRepositoryCreateAndGet(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := insertAdmin(t, repo, "owner", auth.RoleOwner, "")
	staff := insertAdmin(t, repo, "staff", auth.RoleUser, owner.ID)

	got, err := repo.Admins().GetByUsername(ctx, "STAFF")
	require.NoError(t, err)
	assert.Equal(t, staff.ID, got.ID)
	assert.Equal(t, owner.ID, got.CreatedBy)
	assert.Equal(t, auth.PermissionsForRole(auth.RoleUser), got.Permissions)

	got, err = repo.Admins().GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CreatedBy)
	assert.True(t, got.Permissions.CreateAdmins)

	n, err := repo.Admins().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dup := admins.New(newID(t), "Staff", "other@example.com", "Dup", auth.RoleUser, "hash", time.Now())
	assert.ErrorIs(t, repo.Admins().Create(ctx, dup), admins.ErrDuplicate)

	dup = admins.New(newID(t), "other", "STAFF@example.com", "Dup", auth.RoleUser, "hash", time.Now())
	assert.ErrorIs(t, repo.Admins().Create(ctx, dup), admins.ErrDuplicate)

	_, err = repo.Admins().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, admins.ErrAdminNotFound)
}

func TestAdminRepositoryUpdateAndDelete(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := insertAdmin(t, repo, "owner", auth.RoleOwner, "")
	staff := insertAdmin(t, repo, "staff", auth.RoleUser, owner.ID)

	staff.SetRole(auth.RoleOwner)
	staff.IsActive = false
	staff.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Admins().Update(ctx, staff))

	got, err := repo.Admins().GetByID(ctx, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleOwner, got.Role)
	assert.False(t, got.IsActive)

	require.NoError(t, repo.Admins().Delete(ctx, owner.ID))
	got, err = repo.Admins().GetByID(ctx, staff.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CreatedBy, "creator reference is cleared when the creator is deleted")

	assert.ErrorIs(t, repo.Admins().Delete(ctx, owner.ID), admins.ErrAdminNotFound)
}

func TestAdminRepositoryUpdateLoginSerializesAttempts(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	a := insertAdmin(t, repo, "target", auth.RoleUser, "")

	const attempts = 10
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Admins().UpdateLogin(ctx, a.ID, func(a *admins.AdminUser) {
				a.LoginAttempts++
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.Admins().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, attempts, got.LoginAttempts)

	lock := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Microsecond)
	updated, err := repo.Admins().UpdateLogin(ctx, a.ID, func(a *admins.AdminUser) {
		a.LockUntil = &lock
	})
	require.NoError(t, err)
	require.NotNil(t, updated.LockUntil)

	got, err = repo.Admins().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LockUntil)
	assert.True(t, lock.Equal(*got.LockUntil))

	_, err = repo.Admins().UpdateLogin(ctx, "missing", func(*admins.AdminUser) {})
	assert.ErrorIs(t, err, admins.ErrAdminNotFound)
}
