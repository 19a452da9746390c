package redis

import (
	"context"
	"fmt"
	"time"

	"coop-voucher/internal/infra/metrics"
)

// RateLimiter is a fixed-window counter. Each window bucket has its own key.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow records one hit for key and reports whether it stays within limit.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	bucket := bucketKey(key, r.now(), window)

	count, err := r.client.Incr(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, bucket, window); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	if count > int64(limit) {
		metrics.IncRateLimited(groupOf(key))
		return false, nil
	}
	return true, nil
}

func bucketKey(key string, now time.Time, window time.Duration) string {
	return fmt.Sprintf("%s:%d", key, now.UnixNano()/int64(window))
}

// ClientKey scopes a limit to one remote address and one route group.
func ClientKey(remote, group string) string {
	return "rate_limit:" + group + ":" + remote
}

// groupOf extracts the route group from a ClientKey.
func groupOf(key string) string {
	const prefix = "rate_limit:"
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return "other"
	}
	rest := key[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return rest[:i]
		}
	}
	return rest
}
