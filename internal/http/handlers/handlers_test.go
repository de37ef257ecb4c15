package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/http/middleware"
	"github.com/tbourn/shopping-assistant/internal/llm"
	"github.com/tbourn/shopping-assistant/internal/repo"
	"github.com/tbourn/shopping-assistant/internal/services"
	"github.com/tbourn/shopping-assistant/internal/shopping"
)

// ---------- test plumbing ----------

const (
	textReply     = `{"type":"text","content":"What is your budget?","stage":"ASK"}`
	productsReply = `{"type":"products","content":"Here you go:","stage":"PRODUCTS","products":"trail running shoes"}`
	optionsReply  = `{"type":"options","content":"Which size?","stage":"ASK","options":["S","M","L"]}`
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	calls   int
	// gate, when set, blocks each call until it is closed. started is closed
	// on the first blocked call.
	gate    chan struct{}
	started chan struct{}
	panics  bool
}

func (s *scriptedLLM) Reply(_ context.Context, _ []llm.Message) string {
	s.mu.Lock()
	s.calls++
	r := textReply
	if len(s.replies) > 0 {
		r = s.replies[0]
		if len(s.replies) > 1 {
			s.replies = s.replies[1:]
		}
	}
	gate, started, boom := s.gate, s.started, s.panics
	s.panics = false
	s.mu.Unlock()

	if gate != nil {
		if started != nil {
			close(started)
			s.mu.Lock()
			s.started = nil
			s.mu.Unlock()
		}
		<-gate
	}
	if boom {
		panic("model exploded")
	}
	return r
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSearcher struct{ products []domain.Product }

func (s stubSearcher) Search(_ context.Context, _ string) shopping.Result {
	p := s.products
	if p == nil {
		p = []domain.Product{}
	}
	return shopping.Result{Source: domain.SourceCatalog, Products: p}
}

type stubDetails struct {
	res map[string]interface{}
	err error
}

func (s stubDetails) Details(_ context.Context, _ string) (map[string]interface{}, error) {
	return s.res, s.err
}

type stubResearcher struct {
	out string
	err error
}

func (s stubResearcher) Research(_ context.Context, _, _ string) (string, error) {
	return s.out, s.err
}

type testEnv struct {
	llm      *scriptedLLM
	sessions *services.Sessions
	db       *gorm.DB
	router   *gin.Engine
}

type envOpts struct {
	search   shopping.Searcher
	details  shopping.DetailFetcher
	research ProductResearcher
	noDB     bool
}

func newEnv(t *testing.T, l *scriptedLLM, o envOpts) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if o.search == nil {
		o.search = stubSearcher{}
	}
	orch := &services.Orchestrator{LLM: l, Search: o.search, MaxQueryRunes: 50}
	sess := &services.Sessions{KV: repo.NewMemoryKV(), Orchestrator: orch}

	var db *gorm.DB
	if !o.noDB {
		db = newTestDB(t)
	}
	h := New(Deps{
		Queries:  orch,
		Sessions: sess,
		Details:  o.details,
		Research: o.research,
		IdemDB:   db,
		IdemTTL:  time.Hour,
	})

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity(), middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/processQuery", h.ProcessQuery)
	r.POST("/productDetails", h.ProductDetails)
	r.POST("/productResearch", h.ProductResearch)
	r.GET("/threads", h.ListThreads)
	r.POST("/threads", h.CreateThread)
	r.DELETE("/threads/:id", h.DeleteThread)
	r.POST("/threads/:id/switch", h.SwitchThread)
	r.GET("/threads/:id/messages", h.ListMessages)
	r.POST("/session/messages", h.SubmitMessage)
	r.POST("/session/retry", h.RetrySession)
	r.POST("/session/clear", h.ClearSession)
	r.GET("/session", h.GetSession)
	r.DELETE("/session/error", h.DismissError)

	return &testEnv{llm: l, sessions: sess, db: db, router: r}
}

func (e *testEnv) do(method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("want %d, got %d: %s", status, w.Code, w.Body.String())
	}
	env := decode[ErrorResponse](t, w)
	if env.Code != code || env.Error == "" || env.RequestID == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}
