package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openctemio/console/internal/config"
	"github.com/openctemio/console/pkg/apierror"
	"github.com/openctemio/console/pkg/logger"
)

// visitorIdleTTL is how long an idle key keeps its token bucket.
const visitorIdleTTL = 3 * time.Minute

// KeyFunc derives the rate limit key of a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	name     string
	keyFunc  KeyFunc
	rate     rate.Limit
	burst    int
	log      *logger.Logger
	mu       sync.Mutex
	visitors map[string]*visitor
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine. Call
// Stop on shutdown.
func NewRateLimiter(name string, limit rate.Limit, burst int, cleanup time.Duration, keyFunc KeyFunc, log *logger.Logger) *RateLimiter {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	rl := &RateLimiter{
		name:     name,
		keyFunc:  keyFunc,
		rate:     limit,
		burst:    max(burst, 1),
		log:      log,
		visitors: make(map[string]*visitor),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go rl.cleanupVisitors(cleanup)
	return rl
}

// Stop stops the cleanup goroutine and waits for it to exit. Safe to call
// more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
	<-rl.stopped
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) cleanupVisitors(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	defer close(rl.stopped)

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if time.Since(v.lastSeen) > visitorIdleTTL {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware enforces the limit and sets X-RateLimit-* headers.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			limiter := rl.limiterFor(key)

			tokens := limiter.Tokens()
			remaining := int(math.Max(0, math.Floor(tokens)-1))
			resetAt := time.Now()
			if missing := float64(rl.burst) - tokens; missing > 0 && rl.rate > 0 {
				resetAt = resetAt.Add(time.Duration(missing / float64(rl.rate) * float64(time.Second)))
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !limiter.Allow() {
				RateLimitedTotal.WithLabelValues(rl.name).Inc()
				rl.log.Warn("rate limit exceeded",
					"limiter", rl.name,
					"key", key,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				apierror.RateLimitExceeded().WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitWithStop builds the global per-IP limiter from config. The
// returned stop function is a no-op when limiting is disabled.
func RateLimitWithStop(cfg *config.RateLimitConfig, log *logger.Logger) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled {
		return passthrough, func() {}
	}
	rl := NewRateLimiter("ip", rate.Limit(cfg.RequestsPerSec), cfg.Burst, cfg.CleanupInterval, ClientIPKey, log)
	return rl.Middleware(), rl.Stop
}

// LifecycleRateLimitWithStop builds the per-account limiter guarding module
// lifecycle commands, which touch the filesystem and take account locks.
func LifecycleRateLimitWithStop(cfg *config.RateLimitConfig, log *logger.Logger) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled || cfg.LifecyclePerMinute <= 0 {
		return passthrough, func() {}
	}
	perMinute := cfg.LifecyclePerMinute
	rl := NewRateLimiter("lifecycle", rate.Every(time.Minute/time.Duration(perMinute)), perMinute,
		cfg.CleanupInterval, AccountKey, log)
	return rl.Middleware(), rl.Stop
}

func passthrough(next http.Handler) http.Handler { return next }

// AccountKey keys by the authenticated account; unauthenticated requests are not limited.
func AccountKey(r *http.Request) string {
	id := GetAccountID(r.Context())
	if id.IsZero() {
		return ""
	}
	return "account:" + id.String()
}

// ClientIPKey keys by client address. RemoteAddr is already rewritten by
// chi's RealIP middleware when the server sits behind a trusted proxy.
func ClientIPKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
