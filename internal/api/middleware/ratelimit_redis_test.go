package middleware

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Togather-Foundation/eventplanner/internal/config"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	url, err := container.PortEndpoint(ctx, "6379/tcp", "redis")
	require.NoError(t, err)
	return url
}

func TestRedisStore(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	cfg := config.RateLimitConfig{AuthPerWindow: 2, Window: time.Minute, RedisURL: url}
	store, err := NewRedisStore(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := time.Date(2026, 5, 1, 12, 0, 15, 0, time.UTC)
	store.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		ok, _, err := store.Allow(ctx, TierAuth, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retryAfter, err := store.Allow(ctx, TierAuth, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 45*time.Second, retryAfter)

	// The next window starts a fresh counter.
	clock = clock.Add(time.Minute)
	ok, _, err = store.Allow(ctx, TierAuth, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := store.client.TTL(ctx, "ratelimit:auth:10.0.0.1:"+strconv.FormatInt(clock.Truncate(time.Minute).Unix(), 10)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisStore_Unreachable(t *testing.T) {
	store := newRedisStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}),
		config.RateLimitConfig{PublicPerWindow: 5})
	t.Cleanup(func() { _ = store.Close() })

	_, _, err := store.Allow(context.Background(), TierPublic, "10.0.0.1")
	assert.Error(t, err)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), config.RateLimitConfig{RedisURL: "not a url"})
	assert.Error(t, err)
}
