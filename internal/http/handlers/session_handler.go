package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/http/middleware"
	"github.com/tbourn/shopping-assistant/internal/repo"
	"github.com/tbourn/shopping-assistant/internal/services"
	"github.com/tbourn/shopping-assistant/internal/store"
)

// SubmitRequest is the body of POST /session/messages.
type SubmitRequest struct {
	Query string `json:"query" example:"I need a waterproof hiking jacket"`
}

// SubmitResponse reports one turn run by the session.
type SubmitResponse struct {
	ThreadID string          `json:"threadId"`
	User     domain.Message  `json:"user"`
	Reply    *domain.Message `json:"reply,omitempty"`
	// Failed is set when Reply is the apology for a failed turn.
	Failed bool `json:"failed"`
	// Dropped is set when the thread was deleted before the reply landed.
	Dropped bool           `json:"dropped"`
	State   services.State `json:"state"`
}

// SessionResponse is the caller's current view: state, threads and the
// active thread's messages.
type SessionResponse struct {
	State    services.State   `json:"state"`
	Threads  []domain.Thread  `json:"threads"`
	Messages []domain.Message `json:"messages"`
}

// SubmitMessage godoc
// @ID          submitSessionMessage
// @Summary     Send a message in the active thread
// @Description Appends the query to the active thread (creating one if needed) and runs a turn.
// @Description A failed turn still answers 200 with an apology reply and failed=true.
// @Description Repeating a request with the same Idempotency-Key returns the stored turn.
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string                  false  "User ID"  example(user123)
// @Param       Idempotency-Key  header  string                  false  "Key for safe retries"
// @Param       body             body    handlers.SubmitRequest  true   "Query"
// @Success     200  {object}  handlers.SubmitResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or too long query"
// @Failure     409  {object}  handlers.ErrorResponse  "Previous message still running"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /session/messages [post]
func (h *Handlers) SubmitMessage(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query is required and must be a string")
		return
	}
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)

	key, _ := middleware.GetIdempotencyKey(c)
	if key != "" {
		if resp, found := h.replay(ctx, ctl, uid, key); found {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, resp)
			return
		}
	}

	res, err := ctl.Submit(ctx, req.Query)
	if err != nil {
		h.failTurn(c, err)
		return
	}

	if key != "" && h.idemDB != nil && !res.Dropped {
		if _, err := repo.CreateIdempotency(ctx, h.idemDB, uid, res.ThreadID, key, res.Reply.ID, http.StatusOK, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
		}
	}
	ok(c, http.StatusOK, submitResponse(res, ctl.State()))
}

// replay rebuilds the stored turn for key in the active thread.
func (h *Handlers) replay(ctx context.Context, ctl *services.ChatController, uid, key string) (SubmitResponse, bool) {
	if h.idemDB == nil {
		return SubmitResponse{}, false
	}
	active, okA := ctl.Store().ActiveThread()
	if !okA {
		return SubmitResponse{}, false
	}
	rec, err := repo.GetIdempotency(ctx, h.idemDB, uid, active.ID, key, time.Now().UTC())
	if err != nil {
		return SubmitResponse{}, false
	}
	msgs, err := ctl.Store().GetMessages(ctx, active.ID)
	if err != nil {
		return SubmitResponse{}, false
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID != rec.MessageID {
			continue
		}
		reply := msgs[i]
		resp := SubmitResponse{ThreadID: active.ID, Reply: &reply, State: ctl.State()}
		for j := i - 1; j >= 0; j-- {
			if msgs[j].Role == domain.RoleUser {
				resp.User = msgs[j]
				break
			}
		}
		resp.Failed = reply.Content == services.ErrorApology
		return resp, true
	}
	return SubmitResponse{}, false
}

func submitResponse(res services.SubmitResult, st services.State) SubmitResponse {
	out := SubmitResponse{
		ThreadID: res.ThreadID,
		User:     res.User,
		Failed:   res.Failed,
		Dropped:  res.Dropped,
		State:    st,
	}
	if !res.Dropped {
		reply := res.Reply
		out.Reply = &reply
	}
	return out
}

func (h *Handlers) failTurn(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query is required and must be a string")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query is too long")
	case errors.Is(err, services.ErrNothingToRetry):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrBusy):
		fail(c, http.StatusConflict, ErrCodeBusy, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// RetrySession godoc
// @ID          retrySession
// @Summary     Retry the last message
// @Description Resends the most recent user message of the active thread as a new turn.
// @Tags        Session
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Success     200  {object}  handlers.SubmitResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Busy, or nothing to retry"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /session/retry [post]
func (h *Handlers) RetrySession(c *gin.Context) {
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	res, err := ctl.Retry(c.Request.Context())
	if err != nil {
		h.failTurn(c, err)
		return
	}
	ok(c, http.StatusOK, submitResponse(res, ctl.State()))
}

// ClearSession godoc
// @ID          clearSession
// @Summary     Clear the active thread
// @Description Removes every message of the active thread, resets its title and dismisses the error.
// @Tags        Session
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Success     200  {object}  domain.Thread
// @Failure     409  {object}  handlers.ErrorResponse  "Busy or no active thread"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /session/clear [post]
func (h *Handlers) ClearSession(c *gin.Context) {
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	t, err := ctl.Clear(c.Request.Context())
	switch {
	case err == nil:
		ok(c, http.StatusOK, t)
	case errors.Is(err, services.ErrBusy):
		fail(c, http.StatusConflict, ErrCodeBusy, err.Error())
	case errors.Is(err, store.ErrNoActiveThread):
		fail(c, http.StatusConflict, ErrCodeConflict, "no active thread")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// GetSession godoc
// @ID          getSession
// @Summary     Session state
// @Description Returns the busy and error flags, the threads and the active thread's messages.
// @Tags        Session
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Success     200  {object}  handlers.SessionResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	st := ctl.Store()
	resp := SessionResponse{
		State:    ctl.State(),
		Threads:  st.ListThreads(),
		Messages: []domain.Message{},
	}
	if resp.Threads == nil {
		resp.Threads = []domain.Thread{}
	}
	if active, okA := st.ActiveThread(); okA {
		msgs, err := st.GetMessages(c.Request.Context(), active.ID)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
		if msgs != nil {
			resp.Messages = msgs
		}
	}
	ok(c, http.StatusOK, resp)
}

// DismissError godoc
// @ID          dismissSessionError
// @Summary     Dismiss the error indicator
// @Tags        Session
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /session/error [delete]
func (h *Handlers) DismissError(c *gin.Context) {
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	ctl.DismissError()
	noContent(c)
}
