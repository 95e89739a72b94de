package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LoginMaxAttempts = 5
	LoginWindow      = 15 * time.Minute
)

// LoginLimiter counts failed login attempts per client and identifier.
type LoginLimiter interface {
	CheckLoginAttempt(ctx context.Context, ip, identifier string) (bool, int64, error)
	ResetLoginAttempts(ctx context.Context, ip, identifier string) error
}

type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func loginKey(ip, identifier string) string {
	return fmt.Sprintf("ratelimit:login:%s:%s", ip, identifier)
}

func (r *RedisLimiter) CheckLoginAttempt(ctx context.Context, ip, identifier string) (bool, int64, error) {
	key := loginKey(ip, identifier)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment login attempt: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, key, LoginWindow)
	}
	return count <= LoginMaxAttempts, remaining(count), nil
}

func (r *RedisLimiter) ResetLoginAttempts(ctx context.Context, ip, identifier string) error {
	return r.client.Del(ctx, loginKey(ip, identifier)).Err()
}

type attemptWindow struct {
	count   int64
	expires time.Time
}

type MemoryLimiter struct {
	mu       sync.Mutex
	now      func() time.Time
	attempts map[string]attemptWindow
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{now: time.Now, attempts: make(map[string]attemptWindow)}
}

func (m *MemoryLimiter) CheckLoginAttempt(_ context.Context, ip, identifier string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := loginKey(ip, identifier)
	now := m.now()
	w := m.attempts[key]
	if now.After(w.expires) {
		w = attemptWindow{expires: now.Add(LoginWindow)}
	}
	w.count++
	m.attempts[key] = w
	return w.count <= LoginMaxAttempts, remaining(w.count), nil
}

func (m *MemoryLimiter) ResetLoginAttempts(_ context.Context, ip, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, loginKey(ip, identifier))
	return nil
}

func remaining(count int64) int64 {
	left := LoginMaxAttempts - count
	if left < 0 {
		return 0
	}
	return left
}
