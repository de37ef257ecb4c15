// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key handling for session submissions. A
// chat client that loses the response to POST /session/messages (or /retry)
// can resend the request with the same key and receive the model message the
// first attempt produced instead of a second, billable LLM turn.
//
// The validator:
//   - checks the header against a conservative pattern and length cap and
//     rejects malformed keys with 400 bad_idempotency_key
//   - stores the normalized key for handlers (GetIdempotencyKey)
//   - asks an IdempotencyLookup whether the caller already has a live record
//     for the key in their active thread, and marks the request (IsReplay)
//   - lets replays skip the rate limiter, since they never reach the model
//
// Notes:
//   - Records are written by the session handler after the turn completes;
//     this middleware only reads them.
//   - Requests without the header pass through untouched.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets clients retry a session submit without producing a
// second turn.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key validated by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a stored result for this key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Defaults to 200.
	MaxLen int
	// Pattern restricts the key alphabet. Defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a live record exists for the caller and
// key. The lookup decides the scope; the session API scopes keys to the
// caller's active thread. Errors are treated as "no record".
type IdempotencyLookup func(ctx context.Context, userID, key string, now time.Time) (bool, error)

// IdempotencyValidator validates the Idempotency-Key header on unsafe methods
// and stores it for GetIdempotencyKey. A malformed key is rejected with 400.
// When lookup finds a stored result the request is flagged as a replay and
// exempted from rate limiting; serving the stored result is up to the handler.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !unsafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"error":      "invalid " + HeaderIdempotencyKey,
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			if exists, err := lookup(c.Request.Context(), UserID(c), key, time.Now().UTC()); err == nil && exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

func unsafeMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
