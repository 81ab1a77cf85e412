package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBuckets bounds the limiter; the least recently seen bucket is evicted.
const maxBuckets = 10000

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// userLimiter keeps one token bucket per caller. A bucket idle for longer
// than a full refill is dropped, since a new one starts in the same state.
type userLimiter struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	idle      time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newUserLimiter(perMinute int) *userLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &userLimiter{
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		idle:    time.Minute,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *userLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			l.evictOldest()
		}
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *userLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) >= l.idle {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

func (l *userLimiter) evictOldest() {
	var oldest string
	var seen time.Time
	for k, b := range l.buckets {
		if oldest == "" || b.seen.Before(seen) {
			oldest, seen = k, b.seen
		}
	}
	delete(l.buckets, oldest)
}

func (l *userLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// limiterKey identifies the caller: the user header when present, otherwise
// the client host without its port.
func limiterKey(c *echo.Context) string {
	if user := userID(c); user != "" {
		return "user:" + user
	}
	return "ip:" + c.RealIP()
}

// rateLimit guards the routes that call the LLM.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		key := limiterKey(c)
		if !s.limiter.allow(key) {
			s.log.Warn("rate limited", zap.String("key", key))
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
		}
		return next(c)
	}
}

// accessLog writes one debug line per request.
func accessLog(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		HandleError: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("elapsed", v.Latency),
				zap.String("remote", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Debug("request", fields...)
			return nil
		},
	})
}
