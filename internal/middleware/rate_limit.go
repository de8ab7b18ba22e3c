package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limiter 判断某个来源是否仍在配额内。
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RateLimit 使用 limiter 限制同一来源的请求数量，limiter 为 nil 时不限流。
func RateLimit(limiter Limiter, window time.Duration) func(http.Handler) http.Handler {
	if limiter == nil {
		return passthrough
	}
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), clientKey(r)) {
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}

// MemoryLimiter 是单进程固定窗口限流器。
type MemoryLimiter struct {
	mu          sync.Mutex
	clients     map[string]*clientCounter
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

type clientCounter struct {
	count   int
	expires time.Time
}

// NewMemoryLimiter 在参数非正时返回 nil，表示不限流。
func NewMemoryLimiter(maxRequests int, window time.Duration) *MemoryLimiter {
	if maxRequests <= 0 || window <= 0 {
		return nil
	}
	return &MemoryLimiter{
		maxRequests: maxRequests,
		window:      window,
		clients:     make(map[string]*clientCounter),
		now:         time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[key]
	if !ok || now.After(entry.expires) {
		l.clients[key] = &clientCounter{
			count:   1,
			expires: now.Add(l.window),
		}
		return true
	}

	if entry.count >= l.maxRequests {
		return false
	}
	entry.count++

	if len(l.clients) > 1024 {
		l.cleanupLocked(now)
	}
	return true
}

func (l *MemoryLimiter) cleanupLocked(now time.Time) {
	for key, entry := range l.clients {
		if now.After(entry.expires) {
			delete(l.clients, key)
		}
	}
}

// clientKey 优先使用 chi RealIP 处理后的 RemoteAddr。
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP 返回请求来源 IP，供访问统计使用。
func ClientIP(r *http.Request) string {
	return clientKey(r)
}
