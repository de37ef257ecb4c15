package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/shopping-assistant/internal/repo"
	"github.com/tbourn/shopping-assistant/internal/store"
)

// DefaultSessionIdle is how long an unused controller stays in memory.
const DefaultSessionIdle = 30 * time.Minute

// sweepEvery is the number of Get calls between idle sweeps.
const sweepEvery = 1000

// Sessions hands out one ChatController per user, opening the user's Store
// over a shared KV on first use. Controllers idle for longer than IdleTTL are
// evicted unless a turn is running; their state stays in the KV and is
// reloaded on the next Get.
type Sessions struct {
	KV           repo.KV
	Orchestrator *Orchestrator
	StoreOptions []store.Option
	Log          *zerolog.Logger
	IdleTTL      time.Duration
	Now          func() time.Time

	mu     sync.Mutex
	byUser map[string]*session
	gets   uint64
}

type session struct {
	ctl      *ChatController
	lastSeen time.Time
}

// Get returns the controller for userID, creating it if needed. The store is
// opened without holding the registry lock; when two callers race, the first
// controller registered wins.
func (s *Sessions) Get(ctx context.Context, userID string) (*ChatController, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("sessions: empty user id")
	}

	if c := s.lookup(userID); c != nil {
		return c, nil
	}

	st, err := store.Open(ctx, s.KV, userID, s.StoreOptions...)
	if err != nil {
		return nil, fmt.Errorf("open store for %s: %w", userID, err)
	}
	fresh := NewChatController(st, s.Orchestrator, s.Log)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byUser[userID]; ok {
		e.lastSeen = s.now()
		return e.ctl, nil
	}
	if s.byUser == nil {
		s.byUser = make(map[string]*session)
	}
	s.byUser[userID] = &session{ctl: fresh, lastSeen: s.now()}
	return fresh, nil
}

// lookup returns the registered controller for userID, or nil, and sweeps
// idle sessions every sweepEvery calls.
func (s *Sessions) lookup(userID string) *ChatController {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.gets++
	if s.gets >= sweepEvery {
		s.evictIdleLocked(now)
		s.gets = 0
	}
	e, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	e.lastSeen = now
	return e.ctl
}

// EvictIdle drops controllers unused for longer than IdleTTL and reports how
// many were removed.
func (s *Sessions) EvictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictIdleLocked(s.now())
}

func (s *Sessions) evictIdleLocked(now time.Time) int {
	ttl := s.IdleTTL
	if ttl <= 0 {
		ttl = DefaultSessionIdle
	}
	n := 0
	for id, e := range s.byUser {
		if now.Sub(e.lastSeen) < ttl || e.ctl.State().Busy {
			continue
		}
		delete(s.byUser, id)
		n++
	}
	if n > 0 && s.Log != nil {
		s.Log.Debug().Int("evicted", n).Int("open", len(s.byUser)).Msg("idle sessions evicted")
	}
	return n
}

func (s *Sessions) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Len reports the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}
