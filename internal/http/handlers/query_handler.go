package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/services"
	"github.com/tbourn/shopping-assistant/internal/shopping"
)

// ProcessQueryRequest is the body of POST /processQuery.
type ProcessQueryRequest struct {
	// Query is the user's new utterance.
	Query string `json:"query" example:"wireless headphones under $100"`
	// Messages is the prior conversation, oldest first. Optional.
	Messages []domain.Message `json:"messages,omitempty"`
}

// ProcessQueryResponse is the model message for the query plus the updated
// history to send back on the next call.
type ProcessQueryResponse struct {
	Content       string               `json:"content" example:"Here are some options:"`
	Type          domain.MessageType   `json:"type" example:"products"`
	Stage         domain.Stage         `json:"stage" example:"PRODUCTS"`
	ProductSource domain.ProductSource `json:"productSource,omitempty" example:"shopping"`
	Products      *[]domain.Product    `json:"products,omitempty"`
	Options       *[]string            `json:"options,omitempty"`
	Messages      []domain.Message     `json:"messages"`
}

// ProductDetailsRequest is the body of POST /productDetails.
type ProductDetailsRequest struct {
	// The serpapi_immersive_product_api link of a shopping listing.
	SerpAPIImmersiveProductAPI string `json:"serpapi_immersive_product_api" example:"https://serpapi.com/search.json?engine=google_immersive_product&page_token=abc"`
}

// ProductDetailsResponse carries the provider's product_results verbatim.
type ProductDetailsResponse struct {
	ProductResults map[string]interface{} `json:"product_results"`
}

// ProductResearchRequest is the body of POST /productResearch.
type ProductResearchRequest struct {
	ProductLink string `json:"product_link" example:"https://example.com/p/trail-runner"`
	ProductName string `json:"product_name" example:"Trail Runner 3"`
}

// ProductResearchResponse is a successful research report.
type ProductResearchResponse struct {
	Success     bool   `json:"success" example:"true"`
	Research    string `json:"research" example:"## Overview\n..."`
	ProductName string `json:"product_name" example:"Trail Runner 3"`
}

// ProcessQuery godoc
// @ID          processQuery
// @Summary     Answer a shopping query
// @Description Runs one assistant turn over the supplied history. Products replies carry the search results.
// @Tags        Assistant
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ProcessQueryRequest  true  "Query and prior messages"
// @Success     200   {object}  handlers.ProcessQueryResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Missing or invalid query"
// @Failure     405   {object}  handlers.ErrorResponse  "Method not allowed"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /processQuery [post]
func (h *Handlers) ProcessQuery(c *gin.Context) {
	var req ProcessQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Query is required and must be a string")
		return
	}

	out, err := h.queries.Process(c.Request.Context(), historyOf(req.Messages), req.Query)
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Query is required and must be a string")
		return
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Query is too long")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	m := out.Message
	resp := ProcessQueryResponse{
		Content:       m.Content,
		Type:          m.Type,
		Stage:         m.Stage,
		ProductSource: m.ProductSource,
		Messages:      out.History,
	}
	switch m.Type {
	case domain.TypeProducts:
		p := m.Products
		if p == nil {
			p = []domain.Product{}
		}
		resp.Products = &p
	case domain.TypeOptions:
		o := m.Options
		if o == nil {
			o = []string{}
		}
		resp.Options = &o
	}
	ok(c, http.StatusOK, resp)
}

// historyOf drops client messages with an unknown role or no content.
func historyOf(in []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(in))
	for _, m := range in {
		if !m.Role.Valid() || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if !m.Type.Valid() {
			m.Type = domain.TypeText
		}
		out = append(out, m)
	}
	return out
}

// ProductDetails godoc
// @ID          productDetails
// @Summary     Fetch product details
// @Description Follows a listing's serpapi_immersive_product_api link with the server-held key.
// @Tags        Products
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ProductDetailsRequest  true  "Detail link"
// @Success     200   {object}  handlers.ProductDetailsResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Missing or invalid link"
// @Failure     404   {object}  handlers.ErrorResponse  "No product results"
// @Failure     500   {object}  handlers.ErrorResponse  "Provider failure or not configured"
// @Router      /productDetails [post]
func (h *Handlers) ProductDetails(c *gin.Context) {
	var req ProductDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SerpAPIImmersiveProductAPI) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "serpapi_immersive_product_api is required and must be a string")
		return
	}
	if h.details == nil {
		fail(c, http.StatusInternalServerError, ErrCodeNotConfigured, "product details are not configured")
		return
	}

	res, err := h.details.Details(c.Request.Context(), req.SerpAPIImmersiveProductAPI)
	switch {
	case err == nil:
		ok(c, http.StatusOK, ProductDetailsResponse{ProductResults: res})
	case errors.Is(err, shopping.ErrInvalidDetailURL):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "serpapi_immersive_product_api must be a serpapi.com https link")
	case errors.Is(err, shopping.ErrNoDetails):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "No product results found in API response")
	case errors.Is(err, shopping.ErrNotConfigured):
		fail(c, http.StatusInternalServerError, ErrCodeNotConfigured, "product details are not configured")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUpstreamFailed, err.Error())
	}
}

// ProductResearch godoc
// @ID          productResearch
// @Summary     Research a product
// @Description Asks the model for a Markdown report on the product behind the link.
// @Tags        Products
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ProductResearchRequest  true  "Product link and name"
// @Success     200   {object}  handlers.ProductResearchResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Missing product_link or product_name"
// @Failure     500   {object}  handlers.ErrorResponse  "Research failed"
// @Router      /productResearch [post]
func (h *Handlers) ProductResearch(c *gin.Context) {
	var req ProductResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing product_link or product_name")
		return
	}
	if h.research == nil {
		fail(c, http.StatusInternalServerError, ErrCodeNotConfigured, "product research is not configured")
		return
	}

	report, err := h.research.Research(c.Request.Context(), req.ProductLink, req.ProductName)
	switch {
	case errors.Is(err, services.ErrResearchInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing product_link or product_name")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeUpstreamFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ProductResearchResponse{
		Success:     true,
		Research:    report,
		ProductName: strings.TrimSpace(req.ProductName),
	})
}
