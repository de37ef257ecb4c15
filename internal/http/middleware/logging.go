// Package middleware contains the Gin middleware shared by every route:
// correlation ids, caller identity, request logging, panic recovery, metrics,
// idempotency keys, rate limiting and security headers.
//
// Recommended order: RequestID, Identity, RedactingLogger, Recovery, then the
// rest. Later middleware relies on the request id, the user id and the
// request-scoped logger stored by the first three.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"

	// UserIDKey is the Gin context key holding the caller's user id.
	UserIDKey = "userID"
	// HeaderUserID identifies the caller. There is no authentication; the id
	// only namespaces the caller's conversation state.
	HeaderUserID = "X-User-ID"
	// DefaultUserID is used when the request carries no user id.
	DefaultUserID = "demo-user"

	loggerKey = "logger"
)

var userIDRE = regexp.MustCompile(`^[A-Za-z0-9._@\-]{1,128}$`)

// RequestID reuses the caller's X-Request-ID or generates one, and echoes it
// on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Identity stores the X-User-ID header under UserIDKey, falling back to
// DefaultUserID. Ids outside [A-Za-z0-9._@-]{1,128} are rejected with 400
// since they become part of storage keys.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid == "" {
			uid = DefaultUserID
		}
		if !userIDRE.MatchString(uid) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"error":      "invalid " + HeaderUserID,
			})
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// UserID returns the id stored by Identity, or DefaultUserID.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(UserIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return DefaultUserID
}

// Recovery turns a panic into a JSON 500 and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				LoggerFrom(c).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"error":      "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by RedactingLogger,
// or the global logger.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes. A max <= 0 disables truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
