package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/dormitory/backend/internal/interfaces/http/dto"
)

// RateLimiter gives every client a token bucket holding limit requests and
// refilling at limit per window. Idle buckets are swept in the background
// until Stop is called.
type RateLimiter struct {
	limit  int
	window time.Duration
	refill time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	stopCh   chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		refill:  window / time.Duration(max(limit, 1)),
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// sweep drops buckets idle for two windows; by then they are full again.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(2 * rl.window)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.lastSeen) > 2*rl.window {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) bucketFor(key string, create bool) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		if !create {
			return nil
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Every(rl.refill), rl.limit)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// Allow consumes one token for key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucketFor(key, true).Allow()
}

// Remaining is the number of whole tokens key could spend right now.
func (rl *RateLimiter) Remaining(key string) int {
	lim := rl.bucketFor(key, false)
	if lim == nil {
		return rl.limit
	}
	return int(math.Max(0, math.Floor(lim.Tokens())))
}

// RateLimit throttles by client IP and answers RATE_LIMITED with a
// Retry-After hint once the bucket is empty.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(limiter.refill.Seconds())))
	return func(c *gin.Context) {
		key := c.ClientIP()
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		if !limiter.Allow(key) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(
				dto.ErrCodeRateLimited, "Too many requests, retry later", GetRequestID(c)))
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		c.Next()
	}
}
