package middleware

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/corridor_router/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Counter increments a windowed counter and returns the new value
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter keeps counters in Redis so limits hold across instances
type RedisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter wraps a client
func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

// Increment bumps the counter and sets its expiry in one round trip
func (r *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimitMiddleware limits each client IP to perMinute requests per
// fixed one-minute window. Counter failures let the request through.
func RateLimitMiddleware(counter Counter, perMinute int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if perMinute <= 0 || counter == nil {
			return c.Next()
		}

		now := time.Now()
		window := now.Unix() / 60
		key := fmt.Sprintf("rl:client:%s:minute:%d", c.IP(), window)

		count, err := counter.Increment(c.UserContext(), key, time.Minute)
		if err != nil {
			log.Printf("Warning: rate limit counter unavailable: %v", err)
			return c.Next()
		}

		resetAt := (window + 1) * 60
		remaining := int64(perMinute) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if count > int64(perMinute) {
			retryAfter := resetAt - now.Unix()
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			metrics.RateLimited.Inc()

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests per minute",
				"limit":       perMinute,
				"retry_after": retryAfter,
			})
		}

		return c.Next()
	}
}
