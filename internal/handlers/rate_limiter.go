package handlers

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/platform/requestctx"
)

type rateLimiter interface {
	// Allow consumes one request for key and, when refused, reports how long until the
	// window resets.
	Allow(key string) (bool, time.Duration)
}

// fixedWindowLimiter counts requests per key in fixed windows.
type fixedWindowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

// newRateLimiter returns nil when limiting is disabled.
func newRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &fixedWindowLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]rateEntry),
	}
}

func (l *fixedWindowLimiter) Allow(key string) (bool, time.Duration) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || !now.Before(entry.reset) {
		l.store[key] = rateEntry{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true, 0
	}
	if entry.count >= l.limit {
		return false, entry.reset.Sub(now)
	}
	entry.count++
	l.store[key] = entry
	return true, 0
}

func (l *fixedWindowLimiter) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.store {
		if !now.Before(entry.reset) {
			delete(l.store, key)
		}
	}
}

// limitRequests rejects requests over the limit with 429 and a Retry-After header.
func limitRequests(limiter rateLimiter, key func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	if limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := limiter.Allow(key(r))
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", fmt.Sprintf("too many requests, retry in %ds", seconds), http.StatusTooManyRequests))
			return
		}
		next(w, r)
	}
}

// clientIP keys on the address resolved by middleware.RealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// sessionKey keys on the browser session, falling back to the client address.
func sessionKey(r *http.Request) string {
	if id := requestctx.SessionID(r.Context()); id != "" {
		return "session:" + id
	}
	return "ip:" + clientIP(r)
}
