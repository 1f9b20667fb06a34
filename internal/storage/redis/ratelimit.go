package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/flight-gateway/pkg/httpmiddleware"
)

const rateLimitPrefix = "ratelimit:"

var _ httpmiddleware.Limiter = (*RateLimiter)(nil)

// RateLimiter is a fixed window limiter shared by every gateway replica
// using the same Redis. Each window is one counter key that expires with
// the window.
type RateLimiter struct {
	client redis.UniversalClient
	limit  int
	period time.Duration
}

// NewRateLimiter allows limit requests per period and key.
func NewRateLimiter(client redis.UniversalClient, limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, period: period}
}

// Allow implements httpmiddleware.Limiter.
func (l *RateLimiter) Allow(ctx context.Context, key string, now time.Time) (httpmiddleware.Decision, error) {
	start := now.Truncate(l.period)
	counter := rateLimitPrefix + key + ":" + strconv.FormatInt(start.UnixMilli(), 10)

	var incr *redis.IntCmd
	if _, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, counter)
		p.PExpire(ctx, counter, l.period)
		return nil
	}); err != nil {
		return httpmiddleware.Decision{}, errors.Wrap(err, "count request")
	}

	used := int(incr.Val())
	return httpmiddleware.Decision{
		Allowed:   used <= l.limit,
		Remaining: max(l.limit-used, 0),
		ResetAt:   start.Add(l.period),
	}, nil
}
