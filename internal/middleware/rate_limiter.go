package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// ExportRateLimiter limits how often one client may start exports.
type ExportRateLimiter struct {
	perMinute int
	idleTTL   time.Duration

	clients map[string]*clientLimit
	mutex   sync.Mutex
	now     func() time.Time
}

type clientLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewExportRateLimiter creates a limiter allowing perMinute exports per
// client with a burst of the same size. perMinute <= 0 disables limiting.
func NewExportRateLimiter(perMinute int) *ExportRateLimiter {
	return &ExportRateLimiter{
		perMinute: perMinute,
		idleTTL:   10 * time.Minute,
		clients:   make(map[string]*clientLimit),
		now:       time.Now,
	}
}

// RateLimit is a middleware that enforces the export rate per client IP.
func (l *ExportRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perMinute <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP()
		if !l.allowRequest(key) {
			logging.WarnWithComponent(logging.ComponentAPI, "Export rate limit exceeded", "ip", key, "limit", l.perMinute)
			c.Header("Retry-After", "60")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":           "Rate limit exceeded",
				"rate_limit":      l.perMinute,
				"window_duration": "1 minute",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestSizeLimit rejects request bodies larger than maxBytes.
func RequestSizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			logging.WarnWithComponent(logging.ComponentAPI, "Request too large",
				"size", c.Request.ContentLength, "limit", maxBytes, "ip", c.ClientIP())
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":     "Request payload too large",
				"max_size":  fmt.Sprintf("%dKB", maxBytes/1024),
				"your_size": fmt.Sprintf("%dB", c.Request.ContentLength),
			})
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (l *ExportRateLimiter) allowRequest(key string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	entry, exists := l.clients[key]
	if !exists {
		entry = &clientLimit{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Cleanup drops limiters for clients idle longer than the TTL.
func (l *ExportRateLimiter) Cleanup() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	removed := 0
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) >= l.idleTTL {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// CleanupRoutine runs Cleanup on a ticker until stop is closed.
func (l *ExportRateLimiter) CleanupRoutine(stop <-chan struct{}) {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
