package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether another request for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Counter is the subset of *redis.Client used by RedisLimiter.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter is a fixed-window counter kept in Redis.
type RedisLimiter struct {
	rdb    Counter
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per key in each window.
func NewRedisLimiter(rdb Counter, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{rdb: rdb, limit: int64(limit), window: window, now: time.Now}
}

// Allow increments the counter for key's current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("preloader:rate_limit:%s:%d", key, bucket)

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		l.rdb.PExpire(ctx, redisKey, l.window+time.Second)
	}
	return count <= l.limit, nil
}

// RateLimit rejects requests selected by match once the client exhausts its
// window. Clients are keyed by proxies.ClientIP. Limiter errors let the
// request through.
func RateLimit(limiter Limiter, match func(*http.Request) bool, retryAfter time.Duration, proxies TrustedProxies, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || !match(r) {
				next.ServeHTTP(w, r)
				return
			}

			ip := proxies.ClientIP(r)
			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				log.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				seconds := int(retryAfter.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"type":   "rate_limited",
					"detail": "too many requests, slow down",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

