package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller. Idle buckets are evicted.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	rate     rate.Limit
	burst    int
	log      *logrus.Entry
}

func NewRateLimiter(perSecond float64, burst int, logger *logrus.Logger) *RateLimiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 5*time.Minute),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		log:      logger.WithField("component", "ratelimit"),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters.Get(key); ok {
		rl.limiters.SetDefault(key, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters.SetDefault(key, l)
	return l
}

// Handler limits by authenticated user id, falling back to client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.limiter(key).Allow() {
			rl.log.WithFields(logrus.Fields{"key": key, "path": c.FullPath()}).Warn("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, slow down"})
			return
		}
		c.Next()
	}
}
