package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/store"
)

func TestThreads_CreateListAndETag(t *testing.T) {
	e := newEnv(t, &scriptedLLM{}, envOpts{})

	empty := decode[ListThreadsResponse](t, e.do(http.MethodGet, "/threads", nil, nil))
	if empty.Threads == nil || len(empty.Threads) != 0 {
		t.Fatalf("want empty array, got %+v", empty)
	}

	w := e.do(http.MethodPost, "/threads", map[string]any{"title": "  Camping gear for a long weekend trip  "}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: want 201, got %d", w.Code)
	}
	first := decode[domain.Thread](t, w)
	if first.Title != "Camping gear for a long weeken..." {
		t.Fatalf("title should be cut to 30 runes, got %q", first.Title)
	}
	if w := e.do(http.MethodPost, "/threads", nil, nil); w.Code != http.StatusCreated {
		t.Fatalf("create without body: want 201, got %d", w.Code)
	}
	wantError(t, e.do(http.MethodPost, "/threads", `{"title":`, nil), http.StatusBadRequest, ErrCodeBadRequest)

	w = e.do(http.MethodGet, "/threads", nil, nil)
	list := decode[ListThreadsResponse](t, w)
	if len(list.Threads) != 2 || list.Threads[1].ID != first.ID || list.ActiveThreadID != list.Threads[0].ID {
		t.Fatalf("unexpected list: %+v", list)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	if w := e.do(http.MethodGet, "/threads", nil, map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", w.Code)
	}

	e.do(http.MethodPost, "/threads/"+first.ID+"/switch", nil, nil)
	if w := e.do(http.MethodGet, "/threads", nil, map[string]string{"If-None-Match": etag}); w.Code != http.StatusOK {
		t.Fatalf("switching should change the ETag, got %d", w.Code)
	}
}

func TestThreads_SwitchSeedsGreeting(t *testing.T) {
	e := newEnv(t, &scriptedLLM{}, envOpts{})
	th := decode[domain.Thread](t, e.do(http.MethodPost, "/threads", nil, nil))
	e.do(http.MethodPost, "/threads", nil, nil)

	wantError(t, e.do(http.MethodPost, "/threads/missing/switch", nil, nil), http.StatusNotFound, ErrCodeNotFound)

	if w := e.do(http.MethodPost, "/threads/"+th.ID+"/switch", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("switch: want 200, got %d", w.Code)
	}
	page := decode[ListMessagesResponse](t, e.do(http.MethodGet, "/threads/"+th.ID+"/messages", nil, nil))
	if len(page.Messages) != 1 || page.Messages[0].Content != store.Greeting || page.Messages[0].Role != domain.RoleModel {
		t.Fatalf("unexpected messages: %+v", page.Messages)
	}
}

func TestThreads_Delete(t *testing.T) {
	e := newEnv(t, &scriptedLLM{}, envOpts{})
	a := decode[domain.Thread](t, e.do(http.MethodPost, "/threads", nil, nil))

	wantError(t, e.do(http.MethodDelete, "/threads/"+a.ID, nil, nil), http.StatusConflict, ErrCodeConflict)
	wantError(t, e.do(http.MethodDelete, "/threads/nope", nil, nil), http.StatusNotFound, ErrCodeNotFound)

	b := decode[domain.Thread](t, e.do(http.MethodPost, "/threads", nil, nil))
	if w := e.do(http.MethodDelete, "/threads/"+b.ID, nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: want 204, got %d", w.Code)
	}
	list := decode[ListThreadsResponse](t, e.do(http.MethodGet, "/threads", nil, nil))
	if len(list.Threads) != 1 || list.ActiveThreadID != a.ID {
		t.Fatalf("unexpected list after delete: %+v", list)
	}
}

func TestThreads_MessagesPaginationAndETag(t *testing.T) {
	e := newEnv(t, &scriptedLLM{}, envOpts{})
	for i := 0; i < 3; i++ {
		e.do(http.MethodPost, "/session/messages", map[string]any{"query": fmt.Sprintf("q%d", i)}, nil)
	}
	s := decode[SessionResponse](t, e.do(http.MethodGet, "/session", nil, nil))
	id := s.State.ActiveThreadID

	w := e.do(http.MethodGet, "/threads/"+id+"/messages?page=2&page_size=4", nil, nil)
	page := decode[ListMessagesResponse](t, w)
	if len(page.Messages) != 2 || page.Messages[0].Content != "q2" {
		t.Fatalf("unexpected page: %+v", page.Messages)
	}
	want := Pagination{Page: 2, PageSize: 4, Total: 6, TotalPages: 2, HasNext: false}
	if page.Pagination != want {
		t.Fatalf("pagination: want %+v got %+v", want, page.Pagination)
	}

	etag := w.Header().Get("ETag")
	if w := e.do(http.MethodGet, "/threads/"+id+"/messages?page=2&page_size=4", nil, map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/threads/"+id+"/messages", nil, map[string]string{"If-None-Match": etag}); w.Code != http.StatusOK {
		t.Fatalf("another page must not match the ETag, got %d", w.Code)
	}

	past := decode[ListMessagesResponse](t, e.do(http.MethodGet, "/threads/"+id+"/messages?page=9", nil, nil))
	if past.Messages == nil || len(past.Messages) != 0 {
		t.Fatalf("page past the end should be an empty array")
	}
	wantError(t, e.do(http.MethodGet, "/threads/nope/messages", nil, nil), http.StatusNotFound, ErrCodeNotFound)
}
