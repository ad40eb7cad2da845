package server

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultLimiterIdleTTL = 10 * time.Minute

// RateLimitConfig throttles authenticated requests per user. A non-positive rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration
	Clock             func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// userRateLimiter keeps one token bucket per user. Idle buckets are pruned while serving
// requests, so no background goroutine is needed.
type userRateLimiter struct {
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	logger    *zap.Logger
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastPrune time.Time
}

func newUserRateLimiter(cfg RateLimitConfig, logger *zap.Logger) *userRateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(math.Ceil(cfg.RequestsPerSecond))
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultLimiterIdleTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &userRateLimiter{
		limit:     rate.Limit(cfg.RequestsPerSecond),
		burst:     burst,
		idleTTL:   idleTTL,
		now:       clock,
		logger:    logger,
		entries:   make(map[string]*limiterEntry),
		lastPrune: clock(),
	}
}

func (l *userRateLimiter) middleware(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.Next()
		return
	}
	now := l.now()
	if !l.allow(userID, now) {
		retryAfter := int(math.Ceil(1 / float64(l.limit)))
		if retryAfter < 1 {
			retryAfter = 1
		}
		l.logger.Warn("rate limit exceeded", zap.String("user_id", userID))
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}
	c.Next()
}

func (l *userRateLimiter) allow(userID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= l.idleTTL {
		for key, entry := range l.entries {
			if now.Sub(entry.lastAccess) >= l.idleTTL {
				delete(l.entries, key)
			}
		}
		l.lastPrune = now
	}

	entry, ok := l.entries[userID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[userID] = entry
	}
	entry.lastAccess = now
	return entry.limiter.AllowN(now, 1)
}

func (l *userRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
