package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter enforces a fixed-window request quota per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	quota   int
	window  time.Duration
}

type clientWindow struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter allowing quota requests per window.
func NewRateLimiter(quota int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientWindow),
		quota:   quota,
		window:  window,
	}
	go rl.evictLoop()
	return rl
}

// Allow records one request from ip and reports whether it fits the quota.
// The first request past an expired window starts a fresh one.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.clients[ip]
	if !ok || now.Sub(c.start) >= rl.window {
		rl.clients[ip] = &clientWindow{start: now, count: 1}
		return true
	}
	c.count++
	return c.count <= rl.quota
}

// RetryAfter returns the seconds left in ip's current window.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		return 0
	}
	left := rl.window - time.Since(c.start)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds()) + 1
}

// evictLoop drops clients whose window expired long ago so the map does not
// grow with every IP ever seen.
func (rl *RateLimiter) evictLoop() {
	for {
		time.Sleep(time.Hour)

		rl.mu.Lock()
		cutoff := time.Now().Add(-2 * rl.window)
		for ip, c := range rl.clients {
			if c.start.Before(cutoff) {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware rejects requests over the per-IP quota with 429 and a
// Retry-After header.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
