package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/shopping-assistant/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go).
	Code string `json:"code" example:"bad_request"`
	// Human-readable description.
	Error string `json:"error" example:"Query is required and must be a string"`
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("error", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Error:     msg,
	})
}

// Fail is fail for the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
