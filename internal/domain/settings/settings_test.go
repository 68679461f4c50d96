package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

type memoryRepo struct {
	stored *Settings
	gets   int
}

func (m *memoryRepo) Get(context.Context) (Settings, error) {
	m.gets++
	if m.stored == nil {
		return Settings{}, ErrNotFound
	}
	return *m.stored, nil
}

func (m *memoryRepo) Save(_ context.Context, s Settings) error {
	m.stored = &s
	return nil
}

func TestGetDefaultsWhenUnset(t *testing.T) {
	svc := NewService(&memoryRepo{}, zerolog.Nop())

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
	assert.Equal(t, "Event Planning App", got.SiteName)
	assert.Equal(t, 1000, got.MaxEventCapacity)
}

func TestUpdateIsPartial(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, zerolog.Nop())
	fixed := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	on := true
	got, err := svc.Update(context.Background(), "owner-id", UpdateInput{MaintenanceMode: &on})
	require.NoError(t, err)

	assert.True(t, got.MaintenanceMode)
	assert.True(t, got.RegistrationEnabled)
	assert.Equal(t, "owner-id", got.UpdatedBy)
	assert.Equal(t, fixed, got.UpdatedAt)
	require.NotNil(t, repo.stored)
	assert.True(t, repo.stored.MaintenanceMode)
}

func TestUpdateRejectsInvalidCapacity(t *testing.T) {
	svc := NewService(&memoryRepo{}, zerolog.Nop())
	zero := 0

	_, err := svc.Update(context.Background(), "owner-id", UpdateInput{MaxEventCapacity: &zero})

	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "maxEventCapacity", verrs[0].Field)
}

func TestAdaptersUseCache(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, zerolog.Nop())
	clock := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	limit, err := svc.CapacityLimit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000, limit)

	open, err := svc.SignupsOpen(ctx)
	require.NoError(t, err)
	assert.True(t, open)
	assert.Equal(t, 1, repo.gets)

	repo.stored = &Settings{MaintenanceMode: true}
	clock = clock.Add(cacheTTL + time.Second)

	maintenance, err := svc.MaintenanceMode(ctx)
	require.NoError(t, err)
	assert.True(t, maintenance)
	assert.Equal(t, 2, repo.gets)
}
