package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// window tracks requests from one client within the current window
type window struct {
	Count   int
	FirstAt time.Time
}

// RateLimiter is a per-IP fixed-window limiter
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*window
	maxRequests int
	period      time.Duration
	now         func() time.Time
}

// NewRateLimiter creates a new rate limiter
// maxRequests: requests allowed per client within a period
// period: length of the counting window
func NewRateLimiter(maxRequests int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		windows:     make(map[string]*window),
		maxRequests: maxRequests,
		period:      period,
		now:         time.Now,
	}
}

// Allow records a request from ip and reports whether it is within the limit.
// When it is not, the second value is the time until the window resets.
func (rl *RateLimiter) Allow(ip string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, exists := rl.windows[ip]
	if !exists || now.Sub(w.FirstAt) >= rl.period {
		rl.windows[ip] = &window{Count: 1, FirstAt: now}
		return true, rl.maxRequests - 1, 0
	}

	if w.Count >= rl.maxRequests {
		return false, 0, rl.period - now.Sub(w.FirstAt)
	}

	w.Count++
	return true, rl.maxRequests - w.Count, 0
}

// Cleanup removes windows that have expired
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, w := range rl.windows {
		if now.Sub(w.FirstAt) >= rl.period {
			delete(rl.windows, ip)
		}
	}
}

// StartCleanup periodically cleans up old entries until stop is closed
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}

// Middleware rejects requests beyond the limit with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, retryAfter := rl.Allow(c.ClientIP())

		// Set headers for client awareness
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Too many requests. Please try again in %d second(s).", seconds),
			})
			return
		}

		c.Next()
	}
}
