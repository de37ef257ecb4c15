// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with one bucket
// per caller. Each assistant turn costs an LLM call and possibly a paid
// shopping search, so the limiter sits in front of the query, research and
// session routes.
//
// Features:
//   - Per-key token buckets using golang.org/x/time/rate
//   - Callers keyed by X-User-ID when present, client IP otherwise
//   - Exempt paths (/health, /metrics) are never limited
//   - Idempotent replays bypass the limiter (see IdempotencyValidator)
//   - 429 responses carry the error envelope and a bounded Retry-After
//
// Notes:
//   - Idle buckets are swept every few thousand lookups.
//   - The limiter is process-local; several replicas each enforce their own
//     budget.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to its bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the caller's user id when Identity set one,
// otherwise by client IP. Keys are prefixed so the namespaces cannot collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(UserIDKey); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per key. Every model turn costs
// an LLM call and possibly a paid shopping search, so the limit sits in front
// of the assistant routes. Idle buckets are evicted after ttl.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	exempt   map[string]struct{}
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst. Requests whose path is in exempt are never limited.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, exempt ...string) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	ex := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		ex[p] = struct{}{}
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		exempt:   ex,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor sweeps idle buckets every 5000 lookups, before refreshing key,
// so a stale bucket for key itself is replaced.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator flagged the request as a
// replay.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limit. Rejected requests get 429 with the error
// envelope and a Retry-After in whole seconds.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := rl.exempt[c.Request.URL.Path]; ok || IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.getVisitor(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"error":      "rate limit exceeded",
		})
	}
}

// maxRetryAfter caps the advertised wait, in seconds.
const maxRetryAfter = 3600

// retryAfter estimates the wait for the next token, between one second and
// maxRetryAfter. A limiter that never refills reports one second.
func retryAfter(lim *rate.Limiter) int {
	if lim.Limit() == 0 {
		return 1
	}
	r := lim.Reserve()
	if !r.OK() {
		return 1
	}
	d := r.Delay()
	r.Cancel()
	if d == rate.InfDuration {
		return 1
	}
	secs := int(math.Ceil(d.Seconds()))
	switch {
	case secs < 1:
		return 1
	case secs > maxRetryAfter:
		return maxRetryAfter
	}
	return secs
}
