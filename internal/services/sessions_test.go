package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/shopping-assistant/internal/repo"
	"github.com/tbourn/shopping-assistant/internal/store"
)

func TestSessions_OneControllerPerUser(t *testing.T) {
	nop := zerolog.Nop()
	s := &Sessions{
		KV:           repo.NewMemoryKV(),
		Orchestrator: &Orchestrator{LLM: &fakeLLM{replies: []string{okReply}}, Search: &fakeSearcher{}},
		StoreOptions: []store.Option{store.WithCeiling(10)},
		Log:          &nop,
	}
	ctx := context.Background()

	a1, err := s.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	a2, _ := s.Get(ctx, " alice ")
	b, _ := s.Get(ctx, "bob")
	if a1 != a2 {
		t.Fatalf("same user should share a controller")
	}
	if a1 == b || s.Len() != 2 {
		t.Fatalf("users should be isolated")
	}
	if a1.Store().Ceiling() != 10 {
		t.Fatalf("store options not applied")
	}

	if _, err := a1.Submit(ctx, "hello"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(b.Store().ListThreads()) != 0 {
		t.Fatalf("bob should not see alice's threads")
	}

	if _, err := s.Get(ctx, "  "); err == nil {
		t.Fatalf("empty user id should fail")
	}
}

func TestSessions_ReopensPersistedState(t *testing.T) {
	kv := repo.NewMemoryKV()
	orch := &Orchestrator{LLM: &fakeLLM{replies: []string{okReply}}, Search: &fakeSearcher{}}
	ctx := context.Background()

	first := &Sessions{KV: kv, Orchestrator: orch}
	c, _ := first.Get(ctx, "u")
	res, err := c.Submit(ctx, "tent")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	second := &Sessions{KV: kv, Orchestrator: orch}
	c2, _ := second.Get(ctx, "u")
	msgs, err := c2.Store().GetMessages(ctx, res.ThreadID)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("reopened store should see 2 messages, got %d (%v)", len(msgs), err)
	}
}

func TestSessions_ConcurrentFirstGetSharesController(t *testing.T) {
	s := &Sessions{
		KV:           repo.NewMemoryKV(),
		Orchestrator: &Orchestrator{LLM: &fakeLLM{}, Search: &fakeSearcher{}},
	}
	ctx := context.Background()

	const n = 16
	got := make([]*ChatController, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.Get(ctx, "carol")
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			got[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("caller %d got a different controller", i)
		}
	}
	if s.Len() != 1 {
		t.Fatalf("want 1 session, got %d", s.Len())
	}
}

func TestSessions_EvictIdle(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	block := make(chan struct{})
	l := &fakeLLM{replies: []string{okReply}}
	s := &Sessions{
		KV:           repo.NewMemoryKV(),
		Orchestrator: &Orchestrator{LLM: l, Search: &fakeSearcher{}},
		IdleTTL:      time.Minute,
		Now:          func() time.Time { return now },
	}
	ctx := context.Background()

	idle, _ := s.Get(ctx, "idle")
	busy, _ := s.Get(ctx, "busy")
	if _, err := idle.Submit(ctx, "tent"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	started := make(chan struct{})
	l.hook = func() {
		close(started)
		<-block
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = busy.Submit(ctx, "stove")
	}()
	<-started

	now = now.Add(2 * time.Minute)
	if n := s.EvictIdle(); n != 1 {
		t.Fatalf("want 1 evicted, got %d", n)
	}
	if s.Len() != 1 {
		t.Fatalf("busy session should stay, have %d", s.Len())
	}
	close(block)
	<-done

	again, _ := s.Get(ctx, "idle")
	if again == idle {
		t.Fatalf("evicted user should get a fresh controller")
	}
	if th, ok := again.Store().ActiveThread(); !ok || len(again.Store().ListThreads()) != 1 || th.ID == "" {
		t.Fatalf("fresh controller should reload persisted threads")
	}
}

type fakeResearcher struct {
	out  string
	err  error
	link string
}

func (f *fakeResearcher) Research(_ context.Context, link, _ string) (string, error) {
	f.link = link
	return f.out, f.err
}

func TestResearchService(t *testing.T) {
	ctx := context.Background()
	fr := &fakeResearcher{out: "# Report"}
	s := &ResearchService{Model: fr}

	for _, tc := range []struct{ link, name string }{
		{"", "x"},
		{"https://example.com/p", "  "},
		{"ftp://example.com/p", "x"},
		{"not a url", "x"},
	} {
		if _, err := s.Research(ctx, tc.link, tc.name); !errors.Is(err, ErrResearchInput) {
			t.Fatalf("%q/%q: want ErrResearchInput, got %v", tc.link, tc.name, err)
		}
	}

	out, err := s.Research(ctx, " https://example.com/p ", "Tent")
	if err != nil || out != "# Report" || fr.link != "https://example.com/p" {
		t.Fatalf("unexpected: %q %v %q", out, err, fr.link)
	}

	s.Model = &fakeResearcher{err: errors.New("quota")}
	if _, err := s.Research(ctx, "https://example.com/p", "Tent"); err == nil || errors.Is(err, ErrResearchInput) {
		t.Fatalf("provider error should pass through, got %v", err)
	}
}
