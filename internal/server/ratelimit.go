package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter hands out one token bucket per key. Buckets unused for
// limiterIdleTTL are dropped.
type rateLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	entries map[string]*limiterEntry
	swept   time.Time
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		rps:     rate.Limit(perSecond),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
	}
}

func (l *rateLimiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.swept) > limiterIdleTTL {
		for k, entry := range l.entries {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.entries, k)
			}
		}
		l.swept = now
	}
	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// newConnLimiter is the bucket of a single websocket connection.
func (l *rateLimiter) newConnLimiter() *rate.Limiter {
	return rate.NewLimiter(l.rps, l.burst)
}

func (s *Server) enforceRateLimit(c *gin.Context, action string) bool {
	key := identityFrom(c).ID
	if key == "" {
		key = c.ClientIP()
	}
	if s.limiter.Allow(action + ":" + key) {
		return true
	}
	c.Header("Retry-After", "1")
	writeError(c, http.StatusTooManyRequests, "rate_limited", "too many requests")
	return false
}
