package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type idemSeen struct {
	key    string
	ok     bool
	replay bool
	bypass bool
}

func newIdemRouter(lookup IdempotencyLookup, seen *idemSeen) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Identity(), IdempotencyValidator(IdempotencyOptions{MaxLen: 16}, lookup))
	h := func(c *gin.Context) {
		seen.key, seen.ok = GetIdempotencyKey(c)
		seen.replay = IsReplay(c)
		seen.bypass = IsRateBypass(c)
		c.Status(http.StatusOK)
	}
	r.POST("/session/messages", h)
	r.GET("/session", h)
	return r
}

func TestIdempotency_NoHeaderOrSafeMethod(t *testing.T) {
	var p idemSeen
	called := false
	r := newIdemRouter(func(context.Context, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}, &p)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/session/messages", nil))
	if p.ok || p.replay || called {
		t.Fatalf("no header should be a no-op: %+v", p)
	}

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if p.ok || called {
		t.Fatalf("safe methods ignore the key")
	}
}

func TestIdempotency_InvalidKey(t *testing.T) {
	var p idemSeen
	r := newIdemRouter(nil, &p)
	for _, k := range []string{"has space", strings.Repeat("a", 17)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/session/messages", nil)
		req.Header.Set(HeaderIdempotencyKey, k)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q: want 400 got %d", k, w.Code)
		}
		if env := decodeEnvelope(t, w.Body.Bytes()); env["code"] != "bad_idempotency_key" || env["error"] == "" {
			t.Fatalf("unexpected envelope: %v", env)
		}
	}
}

func TestIdempotency_LookupReplayAndMiss(t *testing.T) {
	var p idemSeen
	var gotUser, gotKey string
	stored := map[string]bool{"seen": true}
	r := newIdemRouter(func(_ context.Context, userID, key string, _ time.Time) (bool, error) {
		gotUser, gotKey = userID, key
		if key == "broken" {
			return true, errors.New("db down")
		}
		return stored[key], nil
	}, &p)

	send := func(key string) {
		req := httptest.NewRequest(http.MethodPost, "/session/messages", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		req.Header.Set(HeaderUserID, "u7")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	send("seen")
	if !p.ok || p.key != "seen" || !p.replay || !p.bypass {
		t.Fatalf("expected replay: %+v", p)
	}
	if gotUser != "u7" || gotKey != "seen" {
		t.Fatalf("lookup args: %q %q", gotUser, gotKey)
	}

	send("fresh")
	if !p.ok || p.replay || p.bypass {
		t.Fatalf("expected first-time key: %+v", p)
	}

	send("broken")
	if p.replay {
		t.Fatalf("lookup errors must not flag a replay")
	}
}
