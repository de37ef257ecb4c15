// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the structured access logger used on
// every route except /health and /metrics. Shopping queries and chat turns
// travel in request bodies, which are never logged; what remains (query
// string, selected headers) is scrubbed before it reaches the log.
//
// Behavior:
//   - emails, phone numbers and UUIDs in the query string, header values and
//     the caller's user id are replaced
//   - Authorization, Cookie, Set-Cookie and any configured headers are masked
//   - the level follows the outcome: info for 2xx/3xx, warn for 4xx, error
//     for 5xx
//
// Usage:
//
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-Api-Key"},
//	    SkipPaths:   []string{"/health", "/metrics"},
//	}))
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxQueryLogLength = 2048

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are logged as "[REDACTED]" in addition to Authorization,
	// Cookie and Set-Cookie. Matching is case-insensitive.
	MaskHeaders []string
	// SkipPaths are not logged (e.g. /health, /metrics). The request-scoped
	// logger is still attached.
	SkipPaths []string
}

// RedactingLogger writes one access-log line per request and attaches a
// request-scoped logger for LoggerFrom. Bodies are never logged; ids, emails
// and phone numbers in the query string and header values are scrubbed.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	// UUIDs go first so the phone pattern cannot eat their digit groups.
	uuidRE := regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE := regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE := regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)

	redact := func(s string) string {
		if s == "" {
			return s
		}
		s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
		s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
		return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	}

	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		rid, _ := c.Get(requestIDKey)

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", redact(UserID(c))).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &l)

		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}
		query := redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = l.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = l.Warn()
		}
		ev.
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
