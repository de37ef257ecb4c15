// Package store owns a user's conversation threads and their messages.
//
// A Store keeps the thread list and the active thread id in memory and writes
// every mutation through to a repo.KV before returning, so a Store opened
// later over the same KV reconstructs identical state. Keys are namespaced per
// user:
//
//	<user>:chat-threads              JSON array of domain.Thread, most recent first
//	<user>:chat-active-thread        JSON string holding the active thread id
//	<user>:chat-messages:<threadID>  JSON array of domain.Message, oldest first
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/repo"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrLastThread     = errors.New("cannot delete the only thread")
	ErrNoActiveThread = errors.New("no active thread")
	ErrInvalidMessage = errors.New("invalid message")
)

const (
	// DefaultCeiling is the message count above which LLM history is trimmed.
	DefaultCeiling = 18
	// TitleMaxRunes bounds titles derived from a user utterance.
	TitleMaxRunes = 30
	// Greeting seeds a thread that is switched to while empty.
	Greeting = "Hi! I'm your shopping assistant. Tell me what you're looking for and I'll help you find it."
)

// Option configures a Store.
type Option func(*Store)

// WithCeiling sets the history ceiling used by HistoryForLLM.
func WithCeiling(n int) Option {
	return func(s *Store) {
		if n >= 2 {
			s.ceiling = n
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides uuid.NewString.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Store is one user's thread/message record. It is safe for concurrent use.
type Store struct {
	kv      repo.KV
	user    string
	ceiling int
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	threads  []domain.Thread
	active   string
	messages map[string][]domain.Message
}

// Open loads the persisted state for userID from kv.
func Open(ctx context.Context, kv repo.KV, userID string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("store: empty user id")
	}
	s := &Store{
		kv:       kv,
		user:     userID,
		ceiling:  DefaultCeiling,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		messages: make(map[string][]domain.Message),
	}
	for _, o := range opts {
		o(s)
	}

	if err := s.loadJSON(ctx, s.threadsKey(), &s.threads); err != nil {
		return nil, fmt.Errorf("load threads: %w", err)
	}
	if err := s.loadJSON(ctx, s.activeKey(), &s.active); err != nil {
		return nil, fmt.Errorf("load active thread: %w", err)
	}
	if s.indexOf(s.active) < 0 {
		s.active = ""
		if len(s.threads) > 0 {
			s.active = s.threads[0].ID
		}
	}
	return s, nil
}

// UserID returns the owner of this store.
func (s *Store) UserID() string { return s.user }

// Ceiling returns the configured history ceiling.
func (s *Store) Ceiling() int { return s.ceiling }

// ListThreads returns the threads, most recently updated first.
func (s *Store) ListThreads() []domain.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Thread(nil), s.threads...)
}

// ActiveThread returns the active thread, if any.
func (s *Store) ActiveThread() (domain.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(s.active); i >= 0 {
		return s.threads[i], true
	}
	return domain.Thread{}, false
}

// GetMessages returns the thread's messages in insertion order.
func (s *Store) GetMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(threadID) < 0 {
		return nil, ErrThreadNotFound
	}
	msgs, err := s.messagesLocked(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return append([]domain.Message(nil), msgs...), nil
}

// CreateThread inserts a new thread at the head of the list and makes it
// active. A non-empty titleHint is truncated into the title.
func (s *Store) CreateThread(ctx context.Context, titleHint string) (domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	th := domain.Thread{
		ID:        s.newID(),
		Title:     domain.DefaultThreadTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t := TitleFrom(titleHint); t != "" {
		th.Title = t
	}

	s.threads = append([]domain.Thread{th}, s.threads...)
	s.messages[th.ID] = []domain.Message{}
	s.active = th.ID

	if err := s.persistMessages(ctx, th.ID); err != nil {
		return domain.Thread{}, err
	}
	if err := s.persistIndex(ctx); err != nil {
		return domain.Thread{}, err
	}
	return th, nil
}

// EnsureActive returns the active thread, creating one when none exists.
func (s *Store) EnsureActive(ctx context.Context) (domain.Thread, error) {
	if th, ok := s.ActiveThread(); ok {
		return th, nil
	}
	return s.CreateThread(ctx, "")
}

// AppendMessage appends m to the thread and bumps the thread's UpdatedAt.
// Missing id and timestamps are filled in. The first user message of a thread
// that still carries the default title renames it.
func (s *Store) AppendMessage(ctx context.Context, threadID string, m domain.Message) (domain.Message, error) {
	if !m.Role.Valid() || !m.Type.Valid() {
		return domain.Message{}, ErrInvalidMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(threadID)
	if i < 0 {
		return domain.Message{}, ErrThreadNotFound
	}
	msgs, err := s.messagesLocked(ctx, threadID)
	if err != nil {
		return domain.Message{}, err
	}

	now := s.now()
	if m.ID == "" {
		m.ID = s.newID()
	}
	m.ThreadID = threadID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if m.Role == domain.RoleUser && s.threads[i].Title == domain.DefaultThreadTitle && !hasUserMessage(msgs) {
		if t := TitleFrom(m.Content); t != "" {
			s.threads[i].Title = t
		}
	}

	s.messages[threadID] = append(msgs, m)
	s.touchLocked(i, now)

	if err := s.persistMessages(ctx, threadID); err != nil {
		return domain.Message{}, err
	}
	if err := s.persistIndex(ctx); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

// SwitchThread activates threadID. An empty thread is seeded with a
// model-authored greeting.
func (s *Store) SwitchThread(ctx context.Context, threadID string) (domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(threadID)
	if i < 0 {
		return domain.Thread{}, ErrThreadNotFound
	}
	msgs, err := s.messagesLocked(ctx, threadID)
	if err != nil {
		return domain.Thread{}, err
	}

	now := s.now()
	if len(msgs) == 0 {
		s.messages[threadID] = []domain.Message{{
			ID:        s.newID(),
			ThreadID:  threadID,
			Role:      domain.RoleModel,
			Content:   Greeting,
			Type:      domain.TypeText,
			Stage:     domain.StageNew,
			CreatedAt: now,
			UpdatedAt: now,
		}}
	}
	s.active = threadID
	i = s.touchLocked(i, now)

	if err := s.persistMessages(ctx, threadID); err != nil {
		return domain.Thread{}, err
	}
	if err := s.persistIndex(ctx); err != nil {
		return domain.Thread{}, err
	}
	return s.threads[i], nil
}

// DeleteThread removes a thread and its messages. The only remaining thread
// cannot be deleted. When the active thread is removed the previous thread in
// the list becomes active, or the next one if it was first.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(threadID)
	if i < 0 {
		return ErrThreadNotFound
	}
	if len(s.threads) == 1 {
		return ErrLastThread
	}

	s.threads = append(s.threads[:i:i], s.threads[i+1:]...)
	delete(s.messages, threadID)
	if s.active == threadID {
		if i > 0 {
			s.active = s.threads[i-1].ID
		} else {
			s.active = s.threads[0].ID
		}
	}

	if err := s.kv.Delete(ctx, s.messagesKey(threadID)); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return s.persistIndex(ctx)
}

// ClearActiveThread removes every message of the active thread and resets its
// title. The thread itself survives.
func (s *Store) ClearActiveThread(ctx context.Context) (domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(s.active)
	if i < 0 {
		return domain.Thread{}, ErrNoActiveThread
	}
	s.messages[s.active] = []domain.Message{}
	s.threads[i].Title = domain.DefaultThreadTitle
	s.threads[i].UpdatedAt = s.now()

	if err := s.persistMessages(ctx, s.active); err != nil {
		return domain.Thread{}, err
	}
	if err := s.persistIndex(ctx); err != nil {
		return domain.Thread{}, err
	}
	return s.threads[i], nil
}

// HistoryForLLM returns the thread's messages trimmed to the ceiling.
func (s *Store) HistoryForLLM(ctx context.Context, threadID string) ([]domain.Message, error) {
	msgs, err := s.GetMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return Trim(msgs, s.ceiling), nil
}

// Trim drops the two oldest non-system messages when len(msgs) exceeds
// ceiling. System messages are always kept. The input is not modified.
func Trim(msgs []domain.Message, ceiling int) []domain.Message {
	out := append([]domain.Message(nil), msgs...)
	if ceiling <= 0 || len(out) <= ceiling {
		return out
	}
	dropped := 0
	kept := out[:0]
	for _, m := range out {
		if dropped < 2 && m.Role != domain.RoleSystem {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// TitleFrom derives a thread title from an utterance: whitespace is
// collapsed and anything past TitleMaxRunes is cut and suffixed with "...".
func TitleFrom(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= TitleMaxRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:TitleMaxRunes])) + "..."
}

func hasUserMessage(msgs []domain.Message) bool {
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			return true
		}
	}
	return false
}

// touchLocked bumps UpdatedAt and moves the thread to the head of the list.
// It returns the thread's new index.
func (s *Store) touchLocked(i int, now time.Time) int {
	th := s.threads[i]
	th.UpdatedAt = now
	copy(s.threads[1:i+1], s.threads[:i])
	s.threads[0] = th
	return 0
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.threads {
		if s.threads[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) messagesLocked(ctx context.Context, threadID string) ([]domain.Message, error) {
	if msgs, ok := s.messages[threadID]; ok {
		return msgs, nil
	}
	var msgs []domain.Message
	if err := s.loadJSON(ctx, s.messagesKey(threadID), &msgs); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	s.messages[threadID] = msgs
	return msgs, nil
}

func (s *Store) persistMessages(ctx context.Context, threadID string) error {
	msgs := s.messages[threadID]
	if msgs == nil {
		msgs = []domain.Message{}
	}
	if err := s.saveJSON(ctx, s.messagesKey(threadID), msgs); err != nil {
		return fmt.Errorf("persist messages: %w", err)
	}
	return nil
}

// persistIndex writes the thread list and the active id.
func (s *Store) persistIndex(ctx context.Context) error {
	threads := s.threads
	if threads == nil {
		threads = []domain.Thread{}
	}
	if err := s.saveJSON(ctx, s.threadsKey(), threads); err != nil {
		return fmt.Errorf("persist threads: %w", err)
	}
	if err := s.saveJSON(ctx, s.activeKey(), s.active); err != nil {
		return fmt.Errorf("persist active thread: %w", err)
	}
	return nil
}

func (s *Store) loadJSON(ctx context.Context, key string, dst any) error {
	b, err := s.kv.Get(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func (s *Store) saveJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, b)
}

func (s *Store) threadsKey() string { return s.user + ":chat-threads" }
func (s *Store) activeKey() string  { return s.user + ":chat-active-thread" }
func (s *Store) messagesKey(threadID string) string {
	return s.user + ":chat-messages:" + threadID
}
