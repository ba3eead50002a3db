package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/buildledger/api/internal/config"
	redisinfra "github.com/buildledger/api/internal/infra/redis"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/logger"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	stop     chan struct{}
}

func newRateLimiter(requestsPerSec float64, burst int, cleanupInterval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(requestsPerSec),
		burst:    burst,
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop(cleanupInterval)
	return rl
}

func (rl *rateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupLoop evicts visitors idle for more than three cleanup
// intervals so the map does not grow without bound.
func (rl *rateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-3 * interval)
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if v.lastSeen.Before(cutoff) {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) Stop() {
	close(rl.stop)
}

// RateLimitWithStop returns a per-IP rate limiting middleware and a stop
// function that terminates the background cleanup goroutine. When rate
// limiting is disabled in config, the middleware is a passthrough.
func RateLimitWithStop(cfg *config.RateLimitConfig, log *logger.Logger) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, func() {}
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	rl := newRateLimiter(cfg.RequestsPerSec, cfg.Burst, cleanupInterval)

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)
			limiter := rl.getLimiter(ip)

			if !limiter.Allow() {
				log.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%.0f", cfg.RequestsPerSec))
				w.Header().Set("X-RateLimit-Remaining", "0")
				apierror.RateLimitExceeded().WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}

	return mw, rl.Stop
}

// SensitiveLimiter is the Redis-backed window limiter used on
// authentication and invitation endpoints, where the in-process
// limiter is too coarse for a multi-instance deployment.
type SensitiveLimiter interface {
	Allow(ctx context.Context, key string) (*redisinfra.RateLimitResult, error)
	Limit() int
}

// SensitiveRateLimit creates middleware backed by the shared Redis
// limiter, keyed per client IP. It fails open: an unreachable Redis
// must not take the sign-in path down with it.
func SensitiveRateLimit(limiter SensitiveLimiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + getClientIP(r)

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Error("rate limit check failed",
					"error", err,
					"key", key,
					"request_id", GetRequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := int(time.Until(result.RetryAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn("rate limit exceeded on sensitive endpoint",
					"key", key,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				apierror.RateLimitExceeded().WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP, preferring proxy headers when
// present. RealIP already rewrites RemoteAddr behind trusted proxies,
// so this is a fallback chain rather than a trust decision.
func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
