package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"athfed/internal/domain/service"
	"athfed/internal/errors"
)

const rateKeyPrefix = "ratelimit"

// RateLimiter counts requests per {bucket, key} in fixed windows.
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter builds the limiter.
func NewRateLimiter(client *redis.Client) service.RateLimiter {
	return &RateLimiter{client: client}
}

// Allow increments the window counter and compares it to the budget.
// The TTL is set only when the counter is created, so the window is
// anchored at the first request in it.
func (l *RateLimiter) Allow(ctx context.Context, bucket, key string, budget service.RateBudget) (*service.RateDecision, error) {
	counterKey := fmt.Sprintf("%s:%s:%s", rateKeyPrefix, bucket, key)

	count, err := l.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "increment rate counter")
	}

	if count == 1 {
		if err := l.client.Expire(ctx, counterKey, budget.Window).Err(); err != nil {
			return nil, errors.Wrap(err, "set rate window")
		}
	}

	if count <= int64(budget.Max) {
		return &service.RateDecision{Allowed: true}, nil
	}

	retryAfter, err := l.client.TTL(ctx, counterKey).Result()
	if err != nil || retryAfter < 0 {
		retryAfter = budget.Window
	}

	return &service.RateDecision{Allowed: false, RetryAfter: retryAfter}, nil
}
