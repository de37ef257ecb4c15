// Package handlers implements the HTTP endpoints of the shopping assistant.
//
// Two surfaces are served:
//   - the stateless root endpoints (/processQuery, /productDetails,
//     /productResearch), where the client owns the conversation history;
//   - the session API (threads and session routes), where the server keeps
//     each user's threads and runs turns through a ChatController.
//
// Handlers only validate input, call the services and map their errors to
// statuses. Error bodies always use ErrorResponse.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/http/middleware"
	"github.com/tbourn/shopping-assistant/internal/services"
	"github.com/tbourn/shopping-assistant/internal/shopping"
	"github.com/tbourn/shopping-assistant/internal/utils"
)

// QueryProcessor answers one query against a client-supplied history.
type QueryProcessor interface {
	Process(ctx context.Context, history []domain.Message, query string) (services.Outcome, error)
}

// SessionProvider returns the controller owning a user's threads.
type SessionProvider interface {
	Get(ctx context.Context, userID string) (*services.ChatController, error)
}

// ProductResearcher produces a Markdown research report for a product link.
type ProductResearcher interface {
	Research(ctx context.Context, link, name string) (string, error)
}

// Deps wires the handlers. Details may be nil when no shopping key is
// configured; /productDetails then answers 500 not_configured. IdemDB may be
// nil, which disables Idempotency-Key replay.
type Deps struct {
	Queries  QueryProcessor
	Sessions SessionProvider
	Details  shopping.DetailFetcher
	Research ProductResearcher

	IdemDB  *gorm.DB
	IdemTTL time.Duration
}

// Handlers groups every endpoint.
type Handlers struct {
	queries  QueryProcessor
	sessions SessionProvider
	details  shopping.DetailFetcher
	research ProductResearcher

	idemDB  *gorm.DB
	idemTTL time.Duration
}

// New builds Handlers from d.
func New(d Deps) *Handlers {
	ttl := d.IdemTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		queries:  d.Queries,
		sessions: d.Sessions,
		details:  d.Details,
		research: d.Research,
		idemDB:   d.IdemDB,
		idemTTL:  ttl,
	}
}

// Pagination is attached to paginated list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

func userID(c *gin.Context) string { return middleware.UserID(c) }

// paginate slices items by the page and page_size query parameters.
func paginate[T any](c *gin.Context, items []T) ([]T, Pagination) {
	page, size := utils.ClampPage(c.Query("page"), c.Query("page_size"))
	start, end, pages := utils.PageBounds(len(items), page, size)
	return items[start:end], Pagination{
		Page:       page,
		PageSize:   size,
		Total:      len(items),
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// notModified sets etag and reports whether If-None-Match already matches;
// the caller then returns without a body.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
