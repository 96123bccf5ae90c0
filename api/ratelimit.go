package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/webnest/webnest-api/config"
)

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-key token bucket kept in process memory
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	every    rate.Limit
	burst    int
}

// NewMemoryLimiter allows limit requests per window with the full limit as burst
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		visitors: make(map[string]*visitor),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

// Allow implements Limiter
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(m.every, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow(), nil
}

// Cleanup drops visitors idle for longer than idle
func (m *MemoryLimiter) Cleanup(idle time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.visitors {
		if time.Since(v.lastSeen) > idle {
			delete(m.visitors, key)
		}
	}
}

// RedisLimiter is a fixed-window counter shared by every instance
type RedisLimiter struct {
	Redis  *redis.Client
	Prefix string
	Limit  int
	Window time.Duration
}

// NewRedisLimiter returns a limiter allowing limit requests per window
func NewRedisLimiter(r *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{Redis: r, Prefix: prefix, Limit: limit, Window: window}
}

// Allow implements Limiter
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", r.Prefix, key)
	count, err := r.Redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		r.Redis.Expire(ctx, redisKey, r.Window)
	}
	return count <= int64(r.Limit), nil
}

// NewLimiter returns a Redis limiter when redisURL is set and parses, otherwise an
// in-memory one
func NewLimiter(redisURL, prefix string, limit int, window time.Duration) Limiter {
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err == nil {
			return NewRedisLimiter(redis.NewClient(opts), prefix, limit, window)
		}
		zap.S().Errorw("invalid REDIS_URL, falling back to in-memory rate limiting", "error", err)
	}
	return NewMemoryLimiter(limit, window)
}

// RateLimit rejects callers that exceed l. Limiter errors fail open.
func RateLimit(l Limiter, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), name+":"+ClientIP(r))
			if err != nil {
				zap.S().Errorw("rate limiter error", "limiter", name, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				config.ErrorStatus("Too many requests. Try again later.", http.StatusTooManyRequests, w, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
