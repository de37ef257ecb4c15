package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/store"
)

// ErrorApology is appended as a model message when a turn fails unexpectedly.
const ErrorApology = "Sorry, I encountered an error. Please try again."

// SubmitResult describes one processed submission.
type SubmitResult struct {
	ThreadID string
	User     domain.Message
	// Reply is the appended model message. It is the zero value when Dropped.
	Reply domain.Message
	// Failed is set when the turn failed and Reply holds ErrorApology.
	Failed bool
	// Dropped is set when the originating thread was deleted before the
	// reply could be appended.
	Dropped bool
}

// State is the controller status shown next to the conversation.
type State struct {
	ActiveThreadID string `json:"activeThreadId"`
	Busy           bool   `json:"busy"`
	Error          string `json:"error,omitempty"`
}

// ChatController runs submissions against one user's Store. A controller
// processes one submission at a time.
type ChatController struct {
	store *store.Store
	orch  *Orchestrator
	log   zerolog.Logger

	mu   sync.Mutex
	busy bool
	err  string
}

// NewChatController binds a store to an orchestrator.
func NewChatController(st *store.Store, orch *Orchestrator, logger *zerolog.Logger) *ChatController {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &ChatController{
		store: st,
		orch:  orch,
		log:   l.With().Str("user_id", st.UserID()).Logger(),
	}
}

// Store exposes the underlying thread store.
func (c *ChatController) Store() *store.Store { return c.store }

// State returns a snapshot of the controller status.
func (c *ChatController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{Busy: c.busy, Error: c.err}
	if t, ok := c.store.ActiveThread(); ok {
		st.ActiveThreadID = t.ID
	}
	return st
}

// DismissError clears the error indicator.
func (c *ChatController) DismissError() {
	c.mu.Lock()
	c.err = ""
	c.mu.Unlock()
}

// Submit appends query as a user message to the active thread, asks the
// orchestrator for a reply and appends it to the same thread.
//
// The user message is stored before the model is called. Once it is stored
// exactly one model message follows: the reply, or ErrorApology when the turn
// fails. The turn is not cancelled by ctx; it runs to completion so that the
// reply is always recorded.
func (c *ChatController) Submit(ctx context.Context, query string) (SubmitResult, error) {
	q, err := c.orch.NormalizeQuery(query)
	if err != nil {
		return SubmitResult{}, err
	}
	if !c.begin() {
		return SubmitResult{}, ErrBusy
	}
	defer c.end()

	ctx = context.WithoutCancel(ctx)
	tr := otel.Tracer("services/ChatController")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.String("user.id", c.store.UserID())),
	)
	defer span.End()

	thread, err := c.store.EnsureActive(ctx)
	if err != nil {
		c.fail(err)
		return SubmitResult{}, fmt.Errorf("ensure active thread: %w", err)
	}
	span.SetAttributes(attribute.String("thread.id", thread.ID))

	user, err := c.store.AppendMessage(ctx, thread.ID, domain.Message{
		Role:    domain.RoleUser,
		Content: q,
		Type:    domain.TypeText,
	})
	if err != nil {
		c.fail(err)
		return SubmitResult{}, fmt.Errorf("append user message: %w", err)
	}
	res := SubmitResult{ThreadID: thread.ID, User: user}

	msg, err := c.respond(ctx, thread.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		c.fail(err)
		res.Failed = true
		msg = domain.Message{
			Role:    domain.RoleModel,
			Content: ErrorApology,
			Type:    domain.TypeText,
			Stage:   domain.StageNew,
		}
	}

	stored, err := c.store.AppendMessage(ctx, thread.ID, msg)
	switch {
	case errors.Is(err, store.ErrThreadNotFound):
		c.log.Info().Str("thread_id", thread.ID).Msg("thread deleted during turn; reply dropped")
		res.Dropped = true
		return res, nil
	case err != nil:
		c.fail(err)
		return res, fmt.Errorf("append model message: %w", err)
	}
	res.Reply = stored
	return res, nil
}

// Retry resubmits the content of the most recent user message in the active
// thread. Earlier messages, including a previous apology, are left in place.
func (c *ChatController) Retry(ctx context.Context) (SubmitResult, error) {
	t, ok := c.store.ActiveThread()
	if !ok {
		return SubmitResult{}, ErrNothingToRetry
	}
	msgs, err := c.store.GetMessages(ctx, t.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser && strings.TrimSpace(msgs[i].Content) != "" {
			return c.Submit(ctx, msgs[i].Content)
		}
	}
	return SubmitResult{}, ErrNothingToRetry
}

// Clear empties the active thread and dismisses the error indicator.
func (c *ChatController) Clear(ctx context.Context) (domain.Thread, error) {
	c.mu.Lock()
	busy := c.busy
	c.mu.Unlock()
	if busy {
		return domain.Thread{}, ErrBusy
	}
	t, err := c.store.ClearActiveThread(ctx)
	if err != nil {
		return domain.Thread{}, err
	}
	c.DismissError()
	return t, nil
}

// respond runs the orchestrator over the thread history, converting a panic
// into an error.
func (c *ChatController) respond(ctx context.Context, threadID string) (msg domain.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn panicked: %v", r)
		}
	}()
	history, err := c.store.HistoryForLLM(ctx, threadID)
	if err != nil {
		return domain.Message{}, err
	}
	// history is already trimmed to the store's ceiling.
	msg, _ = c.orch.respondTrimmed(ctx, history)
	return msg, nil
}

func (c *ChatController) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	c.err = ""
	return true
}

func (c *ChatController) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *ChatController) fail(err error) {
	c.log.Error().Err(err).Msg("chat turn failed")
	c.mu.Lock()
	c.err = err.Error()
	c.mu.Unlock()
}
