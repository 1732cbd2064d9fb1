package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Fixed-window limits mirroring the workflow defaults: a generous ceiling for
// the API surface and a strict one for credential endpoints.
const (
	RateLimitWindow = 15 * time.Minute

	GeneralRateLimit = 100
	AuthRateLimit    = 5
)

type rateCounter struct {
	count     int
	windowEnd time.Time
}

// RateLimit limits requests per (client IP, route) within a fixed window.
// Counters live in process memory, which is enough for a single-instance
// deployment.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	var (
		mu   sync.Mutex
		data = make(map[string]*rateCounter)
	)

	ticker := time.NewTicker(window)
	go func() {
		// Drop expired counters so the map does not grow without bound.
		for range ticker.C {
			now := time.Now()
			mu.Lock()
			for key, counter := range data {
				if now.After(counter.windowEnd) {
					delete(data, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		now := time.Now()

		mu.Lock()
		counter, ok := data[key]
		if !ok || now.After(counter.windowEnd) {
			counter = &rateCounter{windowEnd: now.Add(window)}
			data[key] = counter
		}
		counter.count++
		count := counter.count
		resetIn := time.Until(counter.windowEnd)
		mu.Unlock()

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests, please try again later",
				},
			})
			return
		}

		c.Next()
	}
}
