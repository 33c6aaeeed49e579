package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ipRateLimiter caps requests per client IP over a sliding window. Stale
// IPs are dropped as their windows empty, so the map tracks only recently
// active clients.
type ipRateLimiter struct {
	mu      sync.Mutex
	history map[string][]time.Time
	limit   int
	window  time.Duration
}

func newIPRateLimiter(limit int, window time.Duration) *ipRateLimiter {
	return &ipRateLimiter{
		history: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
	}
}

func (rl *ipRateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	attempts := rl.history[key]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[key] = fresh

	if len(fresh) == 1 && len(rl.history) > 1 {
		rl.pruneLocked(windowStart)
	}
	return true
}

func (rl *ipRateLimiter) pruneLocked(windowStart time.Time) {
	for key, attempts := range rl.history {
		expired := true
		for _, t := range attempts {
			if t.After(windowStart) {
				expired = false
				break
			}
		}
		if expired {
			delete(rl.history, key)
		}
	}
}

func (rl *ipRateLimiter) middleware(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg})
			return
		}
		c.Next()
	}
}
