package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Togather-Foundation/eventplanner/internal/config"
)

// RedisStore is a fixed-window counter shared by every server instance.
type RedisStore struct {
	client  *redis.Client
	budgets map[RateLimitTier]int
	window  time.Duration
	prefix  string
	now     func() time.Time
}

// NewRedisStore connects to cfg.RedisURL and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RateLimitConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisStore(client, cfg), nil
}

func newRedisStore(client *redis.Client, cfg config.RateLimitConfig) *RedisStore {
	window := cfg.Window
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisStore{
		client:  client,
		budgets: budgets(cfg),
		window:  window,
		prefix:  "ratelimit:",
		now:     time.Now,
	}
}

func (s *RedisStore) Allow(ctx context.Context, tier RateLimitTier, key string) (bool, time.Duration, error) {
	limit := s.budgets[tier]
	if limit <= 0 {
		return true, 0, nil
	}

	now := s.now()
	windowStart := now.Truncate(s.window)
	redisKey := fmt.Sprintf("%s%s:%s:%d", s.prefix, tier, key, windowStart.Unix())

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, s.window)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("increment rate counter: %w", err)
	}

	if incr.Val() > int64(limit) {
		return false, windowStart.Add(s.window).Sub(now), nil
	}
	return true, 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
