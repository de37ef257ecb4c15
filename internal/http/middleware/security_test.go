package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), func(c *gin.Context) {
		c.Header("Access-Control-Expose-Headers", "X-Custom")
		c.Next()
	}, SecurityHeaders(SecurityOptions{
		EnableHSTS:      true,
		HSTSMaxAge:      time.Hour,
		NoStorePrefixes: []string{"/api/v1/session"},
		EnablePolicy:    true,
	}))
	r.GET("/api/v1/session", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	r.ServeHTTP(w, req)
	h := w.Header()

	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %v", h)
	}
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing")
	}
	if h.Get("Cache-Control") != "no-store" {
		t.Fatalf("session routes should be no-store")
	}
	if h.Get("Strict-Transport-Security") != "max-age=3600; includeSubDomains; preload" {
		t.Fatalf("hsts: %q", h.Get("Strict-Transport-Security"))
	}
	if exp := h.Get("Access-Control-Expose-Headers"); exp != "X-Custom, X-Request-ID, ETag" {
		t.Fatalf("expose headers: %q", exp)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w2.Header().Get("Cache-Control") != "" || w2.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("plain http /health should get neither no-store nor hsts")
	}
}

func TestSecurityHeaders_DefaultMaxAge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnableHSTS: true}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)
	if !strings.HasPrefix(w.Header().Get("Strict-Transport-Security"), "max-age=15552000") {
		t.Fatalf("default max-age: %q", w.Header().Get("Strict-Transport-Security"))
	}
	if w.Header().Get("Access-Control-Expose-Headers") != "" {
		t.Fatalf("no request id, nothing to expose")
	}
}
