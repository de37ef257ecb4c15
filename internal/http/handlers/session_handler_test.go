package handlers

import (
	"net/http"
	"sync"
	"testing"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/http/middleware"
	"github.com/tbourn/shopping-assistant/internal/services"
)

func TestSubmitMessage_AndGetSession(t *testing.T) {
	e := newEnv(t, &scriptedLLM{replies: []string{textReply}}, envOpts{})
	user := map[string]string{middleware.HeaderUserID: "alice"}

	w := e.do(http.MethodPost, "/session/messages", map[string]any{"query": "hiking jacket"}, user)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[SubmitResponse](t, w)
	if res.User.Content != "hiking jacket" || res.Reply == nil || res.Reply.Stage != domain.StageAsk || res.Failed || res.Dropped {
		t.Fatalf("unexpected submit: %+v", res)
	}
	if res.State.Busy || res.State.ActiveThreadID != res.ThreadID {
		t.Fatalf("unexpected state: %+v", res.State)
	}

	s := decode[SessionResponse](t, e.do(http.MethodGet, "/session", nil, user))
	if len(s.Threads) != 1 || s.Threads[0].Title != "hiking jacket" || len(s.Messages) != 2 {
		t.Fatalf("unexpected session: %+v", s)
	}

	other := decode[SessionResponse](t, e.do(http.MethodGet, "/session", nil, map[string]string{middleware.HeaderUserID: "bob"}))
	if len(other.Threads) != 0 || other.Messages == nil || len(other.Messages) != 0 {
		t.Fatalf("bob should have an empty session: %+v", other)
	}
}

func TestSubmitMessage_IdempotentReplay(t *testing.T) {
	l := &scriptedLLM{replies: []string{textReply}}
	e := newEnv(t, l, envOpts{})
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "key-1"}

	first := e.do(http.MethodPost, "/session/messages", map[string]any{"query": "tent"}, hdr)
	second := e.do(http.MethodPost, "/session/messages", map[string]any{"query": "tent"}, hdr)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("codes %d/%d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("second call should be a replay")
	}
	a, b := decode[SubmitResponse](t, first), decode[SubmitResponse](t, second)
	if a.Reply.ID != b.Reply.ID || a.User.ID != b.User.ID || a.ThreadID != b.ThreadID {
		t.Fatalf("replay mismatch: %+v vs %+v", a, b)
	}
	if l.callCount() != 1 {
		t.Fatalf("model should run once, ran %d", l.callCount())
	}

	third := e.do(http.MethodPost, "/session/messages", map[string]any{"query": "tent"}, map[string]string{middleware.HeaderIdempotencyKey: "key-2"})
	if third.Header().Get("Idempotency-Replayed") != "" || l.callCount() != 2 {
		t.Fatalf("new key should run a new turn")
	}
}

func TestSubmitMessage_NoDBSkipsReplay(t *testing.T) {
	l := &scriptedLLM{}
	e := newEnv(t, l, envOpts{noDB: true})
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "k"}
	e.do(http.MethodPost, "/session/messages", map[string]any{"query": "a"}, hdr)
	e.do(http.MethodPost, "/session/messages", map[string]any{"query": "a"}, hdr)
	if l.callCount() != 2 {
		t.Fatalf("without a db every call runs, got %d", l.callCount())
	}
}

func TestSubmitMessage_Validation(t *testing.T) {
	e := newEnv(t, &scriptedLLM{}, envOpts{})
	wantError(t, e.do(http.MethodPost, "/session/messages", `{"query":"  "}`, nil), http.StatusBadRequest, ErrCodeBadRequest)
	wantError(t, e.do(http.MethodPost, "/session/messages", `{"query":1}`, nil), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestSubmitMessage_FailedTurnAndDismiss(t *testing.T) {
	e := newEnv(t, &scriptedLLM{panics: true}, envOpts{})

	res := decode[SubmitResponse](t, e.do(http.MethodPost, "/session/messages", map[string]any{"query": "laptop"}, nil))
	if !res.Failed || res.Reply.Content != services.ErrorApology || res.State.Error == "" {
		t.Fatalf("unexpected failed turn: %+v", res)
	}

	if w := e.do(http.MethodDelete, "/session/error", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("dismiss: want 204, got %d", w.Code)
	}
	s := decode[SessionResponse](t, e.do(http.MethodGet, "/session", nil, nil))
	if s.State.Error != "" {
		t.Fatalf("error should be dismissed")
	}

	w := e.do(http.MethodPost, "/session/retry", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("retry: want 200, got %d: %s", w.Code, w.Body.String())
	}
	retried := decode[SubmitResponse](t, w)
	if retried.Failed || retried.User.Content != "laptop" {
		t.Fatalf("unexpected retry: %+v", retried)
	}
}

func TestRetrySession_NothingToRetry(t *testing.T) {
	e := newEnv(t, &scriptedLLM{}, envOpts{})
	wantError(t, e.do(http.MethodPost, "/session/retry", nil, nil), http.StatusConflict, ErrCodeConflict)
}

func TestClearSession(t *testing.T) {
	e := newEnv(t, &scriptedLLM{}, envOpts{})
	wantError(t, e.do(http.MethodPost, "/session/clear", nil, nil), http.StatusConflict, ErrCodeConflict)

	e.do(http.MethodPost, "/session/messages", map[string]any{"query": "desk"}, nil)
	w := e.do(http.MethodPost, "/session/clear", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear: want 200, got %d", w.Code)
	}
	if th := decode[domain.Thread](t, w); th.Title != domain.DefaultThreadTitle {
		t.Fatalf("title should reset, got %q", th.Title)
	}
	if s := decode[SessionResponse](t, e.do(http.MethodGet, "/session", nil, nil)); len(s.Messages) != 0 {
		t.Fatalf("messages should be cleared: %+v", s.Messages)
	}
}

func TestSubmitMessage_BusyConflict(t *testing.T) {
	l := &scriptedLLM{gate: make(chan struct{}), started: make(chan struct{})}
	started := l.started
	e := newEnv(t, l, envOpts{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.do(http.MethodPost, "/session/messages", map[string]any{"query": "first"}, nil)
	}()
	<-started

	wantError(t, e.do(http.MethodPost, "/session/messages", map[string]any{"query": "second"}, nil), http.StatusConflict, ErrCodeBusy)
	wantError(t, e.do(http.MethodPost, "/session/clear", nil, nil), http.StatusConflict, ErrCodeBusy)
	if s := decode[SessionResponse](t, e.do(http.MethodGet, "/session", nil, nil)); !s.State.Busy {
		t.Fatalf("session should report busy")
	}

	close(l.gate)
	wg.Wait()
	if s := decode[SessionResponse](t, e.do(http.MethodGet, "/session", nil, nil)); len(s.Messages) != 2 || s.State.Busy {
		t.Fatalf("unexpected session after release: %+v", s)
	}
}
