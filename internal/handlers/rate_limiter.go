package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type attemptWindow struct {
	count int
	start time.Time
}

// RateLimiter allows limit attempts per key in a fixed window that starts
// with the key's first attempt. Expired windows are dropped lazily.
type RateLimiter struct {
	attempts    map[string]*attemptWindow
	limit       int
	mutex       sync.Mutex
	window      time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string]*attemptWindow),
		limit:       limit,
		window:      window,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) >= rl.window {
		rl.cleanup(now)
	}

	w, exists := rl.attempts[key]
	if !exists || now.Sub(w.start) >= rl.window {
		rl.attempts[key] = &attemptWindow{count: 1, start: now}
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// cleanup must be called with the mutex held.
func (rl *RateLimiter) cleanup(now time.Time) {
	for key, w := range rl.attempts {
		if now.Sub(w.start) >= rl.window {
			delete(rl.attempts, key)
		}
	}
	rl.lastCleanup = now
}

// clientIP strips the port from RemoteAddr so reconnects share a window.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
