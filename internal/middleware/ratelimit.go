package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/handler"
)

// RateLimiter counts attempts per key in a fixed window opened by the first
// attempt. Expired windows are swept while the limiter is in use.
type RateLimiter struct {
	limit  int
	window time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*attemptWindow
	lastSweep time.Time
}

type attemptWindow struct {
	opened time.Time
	count  int
}

func NewRateLimiter(limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		logger:  logger,
		now:     time.Now,
		windows: make(map[string]*attemptWindow),
	}
}

// Allow counts an attempt for key unless key is already at the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.open(key)
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// RecordFailure counts an attempt regardless of the limit.
func (rl *RateLimiter) RecordFailure(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.open(key).count++
}

// Blocked reports whether key is at the limit. It does not count.
func (rl *RateLimiter) Blocked(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w := rl.live(key)
	return w != nil && w.count >= rl.limit
}

func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.windows, key)
}

// TimeUntilReset is zero when key has no open window.
func (rl *RateLimiter) TimeUntilReset(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w := rl.live(key)
	if w == nil {
		return 0
	}
	return w.opened.Add(rl.window).Sub(rl.now())
}

// live returns the unexpired window of key or nil. rl.mu must be held.
func (rl *RateLimiter) live(key string) *attemptWindow {
	w, ok := rl.windows[key]
	if !ok || rl.now().Sub(w.opened) >= rl.window {
		return nil
	}
	return w
}

// open returns the window of key, opening a fresh one if needed. rl.mu must
// be held.
func (rl *RateLimiter) open(key string) *attemptWindow {
	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.window {
		for k, w := range rl.windows {
			if now.Sub(w.opened) >= rl.window {
				delete(rl.windows, k)
			}
		}
		rl.lastSweep = now
	}

	if w := rl.live(key); w != nil {
		return w
	}
	w := &attemptWindow{opened: now}
	rl.windows[key] = w
	return w
}

// RateLimitMiddleware applies a RateLimiter per client IP.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  *slog.Logger
}

func NewRateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, logger: logger}
}

// Limit answers 429 with Retry-After once the client IP is over the limit.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if m.limiter.Allow(ip) {
			next.ServeHTTP(w, r)
			return
		}
		m.logger.Warn("rate limit exceeded", "ip", ip, "method", r.Method, "path", r.URL.Path)
		tooManyRequests(w, r, m.logger, m.limiter.TimeUntilReset(ip))
	})
}

func tooManyRequests(w http.ResponseWriter, r *http.Request, logger *slog.Logger, wait time.Duration) {
	seconds := int((wait + time.Second - 1) / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
	handler.ErrorResponse(w, r, logger, domain.RateLimit("middleware.RateLimit"))
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the peer address. The server is expected to sit behind a proxy that sets
// these headers.
func getClientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
