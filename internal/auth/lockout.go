package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lockout 记录登录失败次数。失败计数在最后一次失败后 window 时间内有效，
// 达到上限后 key 被锁定直到计数过期。
type Lockout interface {
	// Status 返回当前失败次数与剩余有效期。
	Status(ctx context.Context, key string) (attempts int, ttl time.Duration, err error)
	// Fail 记录一次失败并返回累计次数。
	Fail(ctx context.Context, key string) (int, error)
	// Reset 清除 key 的失败计数。
	Reset(ctx context.Context, key string) error
}

var failScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return count
`)

// RedisLockout 使用 Redis 计数，进程重启后仍然有效，多实例共享。
type RedisLockout struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedisLockout 创建 Redis 锁定存储。
func NewRedisLockout(client *redis.Client, prefix string, window time.Duration) (*RedisLockout, error) {
	if client == nil {
		return nil, errors.New("lockout redis client is required")
	}
	if window <= 0 {
		return nil, errors.New("lockout window must be positive")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "fileshelf:login"
	}
	return &RedisLockout{client: client, prefix: prefix, window: window}, nil
}

func (l *RedisLockout) key(k string) string {
	return l.prefix + ":" + k
}

func (l *RedisLockout) Status(ctx context.Context, key string) (int, time.Duration, error) {
	n, err := l.client.Get(ctx, l.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get attempts: %w", err)
	}
	ttl, err := l.client.PTTL(ctx, l.key(key)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("get ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return n, ttl, nil
}

func (l *RedisLockout) Fail(ctx context.Context, key string) (int, error) {
	n, err := failScript.Run(ctx, l.client, []string{l.key(key)}, l.window.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	return n, nil
}

func (l *RedisLockout) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

type attemptEntry struct {
	count   int
	expires time.Time
}

// MemoryLockout 是单进程内的锁定存储，未配置 Redis 时使用。
type MemoryLockout struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]attemptEntry
	now     func() time.Time
}

func NewMemoryLockout(window time.Duration) *MemoryLockout {
	return &MemoryLockout{
		window:  window,
		entries: make(map[string]attemptEntry),
		now:     time.Now,
	}
}

func (l *MemoryLockout) Status(ctx context.Context, key string) (int, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.live(key)
	if !ok {
		return 0, 0, nil
	}
	return e.count, e.expires.Sub(l.now()), nil
}

func (l *MemoryLockout) Fail(ctx context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, _ := l.live(key)
	e.count++
	e.expires = l.now().Add(l.window)
	l.entries[key] = e
	return e.count, nil
}

func (l *MemoryLockout) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}

// live 返回未过期的条目，过期条目顺带清理。调用方持有锁。
func (l *MemoryLockout) live(key string) (attemptEntry, bool) {
	e, ok := l.entries[key]
	if !ok {
		return attemptEntry{}, false
	}
	if !l.now().Before(e.expires) {
		delete(l.entries, key)
		return attemptEntry{}, false
	}
	return e, true
}
