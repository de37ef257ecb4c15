package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/services"
	"github.com/tbourn/shopping-assistant/internal/store"
)

// CreateThreadRequest is the optional body of POST /threads.
type CreateThreadRequest struct {
	// Title hint, cut to 30 characters. Defaults to "New chat".
	Title string `json:"title" example:"Running shoes"`
}

// ListThreadsResponse lists the user's threads, most recent first.
type ListThreadsResponse struct {
	Threads        []domain.Thread `json:"threads"`
	ActiveThreadID string          `json:"activeThreadId,omitempty"`
}

// ListMessagesResponse is one page of a thread's messages, oldest first.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// controller resolves the caller's ChatController or writes a 500.
func (h *Handlers) controller(c *gin.Context) (*services.ChatController, bool) {
	ctl, err := h.sessions.Get(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not open session")
		return nil, false
	}
	return ctl, true
}

// ListThreads godoc
// @ID          listThreads
// @Summary     List threads
// @Description Returns the caller's threads, most recently updated first. Supports a weak ETag.
// @Tags        Threads
// @Produce     json
// @Param       X-User-ID      header  string  false  "User ID"  example(user123)
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"
// @Success     200  {object}  handlers.ListThreadsResponse
// @Header      200  {string}  ETag  "Weak ETag for the thread list"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads [get]
func (h *Handlers) ListThreads(c *gin.Context) {
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	st := ctl.Store()
	threads := st.ListThreads()
	if threads == nil {
		threads = []domain.Thread{}
	}
	active, _ := st.ActiveThread()

	if notModified(c, threadsETag(st.UserID(), threads, active.ID)) {
		return
	}
	ok(c, http.StatusOK, ListThreadsResponse{Threads: threads, ActiveThreadID: active.ID})
}

func threadsETag(user string, threads []domain.Thread, active string) string {
	var latest int64
	for _, t := range threads {
		if ts := t.UpdatedAt.UnixNano(); ts > latest {
			latest = ts
		}
	}
	return fmt.Sprintf(`W/"threads:%s:%d:%d:%s"`, user, len(threads), latest, active)
}

// CreateThread godoc
// @ID          createThread
// @Summary     Create a thread
// @Description Creates an empty thread and makes it active.
// @Tags        Threads
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string                        false  "User ID"  example(user123)
// @Param       body       body    handlers.CreateThreadRequest  false  "Optional title"
// @Success     201  {object}  domain.Thread
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads [post]
func (h *Handlers) CreateThread(c *gin.Context) {
	var req CreateThreadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	t, err := ctl.Store().CreateThread(c.Request.Context(), strings.TrimSpace(req.Title))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, t)
}

// DeleteThread godoc
// @ID          deleteThread
// @Summary     Delete a thread
// @Description Deletes a thread and its messages. The last remaining thread cannot be deleted.
// @Tags        Threads
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Param       id         path    string  true   "Thread ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Thread not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Only thread"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads/{id} [delete]
func (h *Handlers) DeleteThread(c *gin.Context) {
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	err := ctl.Store().DeleteThread(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, store.ErrThreadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
	case errors.Is(err, store.ErrLastThread):
		fail(c, http.StatusConflict, ErrCodeConflict, "cannot delete the only thread")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// SwitchThread godoc
// @ID          switchThread
// @Summary     Switch the active thread
// @Description Makes the thread active. An empty thread is seeded with a greeting.
// @Tags        Threads
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Param       id         path    string  true   "Thread ID"
// @Success     200  {object}  domain.Thread
// @Failure     404  {object}  handlers.ErrorResponse  "Thread not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads/{id}/switch [post]
func (h *Handlers) SwitchThread(c *gin.Context) {
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	t, err := ctl.Store().SwitchThread(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, t)
	case errors.Is(err, store.ErrThreadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// ListMessages godoc
// @ID          listThreadMessages
// @Summary     List a thread's messages
// @Description Returns one page of the thread's messages, oldest first. Supports a weak ETag.
// @Tags        Threads
// @Produce     json
// @Param       X-User-ID      header  string  false  "User ID"  example(user123)
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"
// @Param       id             path    string  true   "Thread ID"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Thread not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctl, okc := h.controller(c)
	if !okc {
		return
	}
	threadID := c.Param("id")
	msgs, err := ctl.Store().GetMessages(c.Request.Context(), threadID)
	switch {
	case errors.Is(err, store.ErrThreadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	page, pg := paginate(c, msgs)
	if page == nil {
		page = []domain.Message{}
	}
	var latest int64
	if n := len(msgs); n > 0 {
		latest = msgs[n-1].UpdatedAt.UnixNano()
	}
	etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, threadID, len(msgs), latest, pg.Page, pg.PageSize)
	if notModified(c, etag) {
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: page, Pagination: pg})
}
