package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitchflow/labelrelay/internal/telemetry"
)

const (
	defaultRateLimit  = 90
	defaultRateWindow = time.Minute
)

type rateWindow struct {
	start time.Time
	count int
}

// RateLimiter enforces a fixed-window request cap per client IP. Windows
// are process-local; each instance counts independently.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow

	limit     int
	windowLen time.Duration
	now       func() time.Time

	stopJanitor chan struct{}
	janitorOnce sync.Once
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	rl := &RateLimiter{
		windows:     make(map[string]*rateWindow),
		limit:       limit,
		windowLen:   window,
		now:         time.Now,
		stopJanitor: make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		remaining, reset, ok := rl.allow(c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			telemetry.RateLimitRejects.Inc()
			retryAfter := int(reset.Sub(rl.now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// allow records one request for the key and reports whether it fits in the
// current window, along with the remaining budget and window reset time.
func (rl *RateLimiter) allow(key string) (remaining int, reset time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.windows[key]
	if w == nil || now.Sub(w.start) >= rl.windowLen {
		w = &rateWindow{start: now}
		rl.windows[key] = w
	}
	reset = w.start.Add(rl.windowLen)

	if w.count >= rl.limit {
		return 0, reset, false
	}
	w.count++
	return rl.limit - w.count, reset, true
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(rl.windowLen)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopJanitor:
			return
		case <-ticker.C:
			rl.evictExpired()
		}
	}
}

func (rl *RateLimiter) evictExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, w := range rl.windows {
		if now.Sub(w.start) >= rl.windowLen {
			delete(rl.windows, key)
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.janitorOnce.Do(func() {
		close(rl.stopJanitor)
	})
}
