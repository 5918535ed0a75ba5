package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests a key may make per Window.
	Max    int
	Window time.Duration
	// KeyFunc extracts the rate limit key. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window counts requests of one key in the current and previous fixed
// windows; the previous count is weighted by its remaining overlap.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

// Limiter is a sliding window request limiter keyed by client.
type Limiter struct {
	max   int
	size  time.Duration
	mu    sync.Mutex
	byKey map[string]*window
	keyFn func(*http.Request) string
	nowFn func() time.Time
}

// NewLimiter creates a Limiter from cfg.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = ClientIP
	}
	return &Limiter{
		max:   cfg.Max,
		size:  cfg.Window,
		byKey: make(map[string]*window),
		keyFn: keyFn,
		nowFn: time.Now,
	}
}

// Allow records a request of key at now and reports whether it fits the
// limit, how many requests remain and when the current window ends.
func (l *Limiter) Allow(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.byKey[key]
	if !found {
		w = &window{start: now.Truncate(l.size)}
		l.byKey[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= l.size {
		w.prev = w.curr
		if elapsed >= 2*l.size {
			w.prev = 0
		}
		w.curr = 0
		w.start = now.Truncate(l.size)
	}

	overlap := 1 - now.Sub(w.start).Seconds()/l.size.Seconds()
	used := w.prev*max(overlap, 0) + w.curr
	reset = w.start.Add(l.size)
	if used >= float64(l.max) {
		return false, 0, reset
	}
	w.curr++
	return true, max(int(float64(l.max)-used-1), 0), reset
}

// Sweep forgets keys idle for two full windows.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.byKey {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.byKey, k)
		}
	}
}

// Run sweeps idle keys every two windows until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.size)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

// Middleware rejects requests over the limit with 429. Every response carries
// the X-RateLimit-* headers.
func (l *Limiter) Middleware() Middleware {
	limit := strconv.Itoa(l.max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := l.nowFn()
			ok, remaining, reset := l.Allow(l.keyFn(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := max(reset.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit builds a Limiter whose idle keys are swept until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg)
	go l.Run(ctx)
	return l.Middleware()
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then
// the remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
