package signal

import (
	"sync"
	"time"

	"github.com/talkrooms/talkrooms/internal/core"
)

// SendRateLimiter caps chat sends per connection over a sliding window.
type SendRateLimiter struct {
	mu       sync.Mutex
	history  map[core.ConnID][]time.Time
	limit    int
	interval time.Duration
}

func NewSendRateLimiter(limit int, interval time.Duration) *SendRateLimiter {
	return &SendRateLimiter{
		history:  make(map[core.ConnID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *SendRateLimiter) Allow(id core.ConnID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[id] = fresh
	return true
}

// Forget drops a connection's history once it disconnects.
func (rl *SendRateLimiter) Forget(id core.ConnID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, id)
}
