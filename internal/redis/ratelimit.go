package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/ctf-scoreboard/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RateLimiter caps flag submissions per user using fixed windows
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit submissions per user per window
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// limitKey returns the counter key for the window containing now
func (l *RateLimiter) limitKey(userID domain.UserID, now time.Time) string {
	bucket := now.UnixNano() / int64(l.window)
	return fmt.Sprintf("ratelimit:submit:%d:%d", userID, bucket)
}

// Allow counts one submission for userID and returns domain.ErrRateLimited
// once the current window is exhausted
func (l *RateLimiter) Allow(ctx context.Context, userID domain.UserID) error {
	key := l.limitKey(userID, l.now())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("counting submission: %w", err)
	}

	if incr.Val() > int64(l.limit) {
		return domain.ErrRateLimited
	}
	return nil
}
