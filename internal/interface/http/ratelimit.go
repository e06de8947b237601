package http

import (
	"math"
	"strconv"
	"sync"
	"time"
)

// rateLimiter grants each client a fixed number of requests per window.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*windowCount

	stop     chan struct{}
	stopOnce sync.Once
}

type windowCount struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*windowCount),
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow counts a request from key. When the budget is spent it returns false
// and the time left until the window resets.
func (rl *rateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	wc, ok := rl.clients[key]
	if !ok || now.Sub(wc.start) >= rl.window {
		rl.clients[key] = &windowCount{start: now, count: 1}
		return true, 0
	}
	if wc.count >= rl.limit {
		return false, wc.start.Add(rl.window).Sub(now)
	}
	wc.count++
	return true, 0
}

// sweep drops expired windows so idle clients do not accumulate.
func (rl *rateLimiter) sweep() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for key, wc := range rl.clients {
				if now.Sub(wc.start) >= rl.window {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// retryAfter renders a wait as whole seconds, rounded up, at least one.
func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
