package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "ratelimit:dest:"
	rateLimitWindow    = time.Minute
)

// RateLimiter implements domain.RateLimiter using a Redis sliding window,
// keyed per destination address so one noisy recipient cannot starve others.
type RateLimiter struct {
	client         *Client
	perDestination int
}

// NewRateLimiter creates a new RateLimiter
func NewRateLimiter(client *Client, perDestination int) *RateLimiter {
	return &RateLimiter{
		client:         client,
		perDestination: perDestination,
	}
}

func rateLimitKey(destination string) string {
	return rateLimitKeyPrefix + destination
}

// Allow checks if a send to the destination is allowed under the limit.
func (r *RateLimiter) Allow(ctx context.Context, destination string) (bool, error) {
	key := rateLimitKey(destination)
	now := time.Now()
	windowStart := now.Add(-rateLimitWindow)

	pipe := r.client.client.Pipeline()

	// Remove old entries outside the window
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))

	// Count current entries in the window
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if countCmd.Val() >= int64(r.perDestination) {
		return false, nil
	}

	// Add new entry with current timestamp as score
	member := fmt.Sprintf("%d", now.UnixNano())
	if err := r.client.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	}).Err(); err != nil {
		return false, fmt.Errorf("failed to record send: %w", err)
	}

	// Set expiry on the key
	r.client.client.Expire(ctx, key, 2*rateLimitWindow)

	return true, nil
}
