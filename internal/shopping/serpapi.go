package shopping

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	g "github.com/serpapi/google-search-results-golang"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/shopping-assistant/internal/config"
	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/observability"
)

// Backend performs one SerpAPI request and returns the decoded JSON body.
type Backend func(params map[string]string, apiKey string) (map[string]interface{}, error)

func serpBackend(params map[string]string, apiKey string) (map[string]interface{}, error) {
	search := g.NewGoogleSearch(params, apiKey)
	return search.GetJSON()
}

const serpHost = "serpapi.com"

// SerpAPI searches the google_shopping engine.
type SerpAPI struct {
	key      string
	country  string
	language string
	timeout  time.Duration
	max      int
	opts     options
}

// NewSerpAPI builds a searcher from cfg. Search works with an empty key but
// every call fails and yields an empty result.
func NewSerpAPI(cfg config.ShoppingConfig, opts ...Option) *SerpAPI {
	s := &SerpAPI{
		key:      strings.TrimSpace(cfg.SerpAPIKey),
		country:  cfg.Country,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		max:      clampMax(cfg.MaxResults),
		opts:     options{log: log.Logger, fetch: serpBackend},
	}
	if s.timeout <= 0 {
		s.timeout = 8 * time.Second
	}
	for _, o := range opts {
		o(&s.opts)
	}
	return s
}

// Search returns up to the configured number of listings for query. Any
// provider failure is logged and produces an empty result.
func (s *SerpAPI) Search(ctx context.Context, query string) Result {
	tr := otel.Tracer("shopping/SerpAPI")
	ctx, span := tr.Start(ctx, "Search")
	defer span.End()

	query = strings.TrimSpace(query)
	span.SetAttributes(attribute.String("shopping.query", query))
	if query == "" {
		observability.ShoppingSearches.WithLabelValues(string(domain.SourceShopping), observability.OutcomeEmpty).Inc()
		return empty(domain.SourceShopping)
	}

	params := map[string]string{
		"engine": "google_shopping",
		"q":      query,
	}
	if s.country != "" {
		params["gl"] = s.country
	}
	if s.language != "" {
		params["hl"] = s.language
	}

	start := time.Now()
	data, err := s.call(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		outcome := observability.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = observability.OutcomeTimeout
		}
		observability.ShoppingSearches.WithLabelValues(string(domain.SourceShopping), outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.opts.log.Warn().Err(err).
			Str("query", query).
			Str("outcome", outcome).
			Dur("latency", elapsed).
			Msg("shopping search failed; returning no products")
		return empty(domain.SourceShopping)
	}

	listings := parseListings(data, s.max)
	outcome := observability.OutcomeOK
	if len(listings) == 0 {
		outcome = observability.OutcomeEmpty
	}
	observability.ShoppingSearches.WithLabelValues(string(domain.SourceShopping), outcome).Inc()
	span.SetAttributes(attribute.Int("shopping.results", len(listings)))
	s.opts.log.Debug().Str("query", query).Int("results", len(listings)).Dur("latency", elapsed).Msg("shopping search")

	return Result{Source: domain.SourceShopping, Products: domain.FromListings(listings)}
}

// Details fetches the product_results object behind a detail link emitted in
// a listing's serpapi_immersive_product_api field. The server-held key is
// attached; only links on the provider's host are followed.
func (s *SerpAPI) Details(ctx context.Context, detailURL string) (map[string]interface{}, error) {
	tr := otel.Tracer("shopping/SerpAPI")
	ctx, span := tr.Start(ctx, "Details")
	defer span.End()

	params, err := detailParams(detailURL)
	if err != nil {
		return nil, err
	}
	if s.key == "" {
		return nil, ErrNotConfigured
	}

	data, err := s.call(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "details")
		return nil, fmt.Errorf("product details: %w", err)
	}
	pr, ok := data["product_results"].(map[string]interface{})
	if !ok || len(pr) == 0 {
		return nil, ErrNoDetails
	}
	return pr, nil
}

// call runs the blocking client call on its own goroutine so the timeout and
// ctx cancellation are honored. A late reply is discarded.
func (s *SerpAPI) call(ctx context.Context, params map[string]string) (map[string]interface{}, error) {
	if s.key == "" {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type reply struct {
		data map[string]interface{}
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		data, err := s.opts.fetch(params, s.key)
		ch <- reply{data: data, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if msg, ok := r.data["error"].(string); ok && msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrProvider, msg)
		}
		return r.data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// detailParams turns a provider detail link into request parameters. Any
// api_key already on the link is dropped.
func detailParams(detailURL string) (map[string]string, error) {
	raw := strings.TrimSpace(detailURL)
	if raw == "" {
		return nil, ErrInvalidDetailURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || !strings.EqualFold(u.Hostname(), serpHost) {
		return nil, ErrInvalidDetailURL
	}
	params := map[string]string{}
	for k, v := range u.Query() {
		if k == "api_key" || k == "output" || len(v) == 0 {
			continue
		}
		params[k] = v[0]
	}
	if params["engine"] == "" {
		return nil, ErrInvalidDetailURL
	}
	return params, nil
}

func parseListings(data map[string]interface{}, max int) []domain.Listing {
	raw, ok := data["shopping_results"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]domain.Listing, 0, min(len(raw), max))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		l := listingFrom(m)
		if l.Title == "" {
			continue
		}
		out = append(out, l)
		if len(out) == max {
			break
		}
	}
	return out
}

func listingFrom(m map[string]interface{}) domain.Listing {
	l := domain.Listing{
		Position:                   intOf(m["position"]),
		Title:                      strings.TrimSpace(stringOf(m["title"])),
		Price:                      stringOf(m["price"]),
		ExtractedPrice:             priceOf(m["extracted_price"]),
		OldPrice:                   stringOf(m["old_price"]),
		ExtractedOldPrice:          priceOf(m["extracted_old_price"]),
		Thumbnail:                  stringOf(m["thumbnail"]),
		ProductLink:                stringOf(m["product_link"]),
		Source:                     stringOf(m["source"]),
		Rating:                     floatPtr(m["rating"]),
		Delivery:                   stringOf(m["delivery"]),
		ProductID:                  stringOf(m["product_id"]),
		SerpAPIProductAPI:          stringOf(m["serpapi_product_api"]),
		SerpAPIImmersiveProductAPI: stringOf(m["serpapi_immersive_product_api"]),
		ImmersiveProductPageToken:  stringOf(m["immersive_product_page_token"]),
	}
	if l.ProductLink == "" {
		l.ProductLink = stringOf(m["link"])
	}
	if _, ok := m["reviews"].(float64); ok {
		n := intOf(m["reviews"])
		l.Reviews = &n
	}
	return l
}

func stringOf(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func intOf(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func floatPtr(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	}
	return nil
}

// priceOf treats negative amounts as absent.
func priceOf(v interface{}) *float64 {
	p := floatPtr(v)
	if p == nil || *p < 0 {
		return nil
	}
	return p
}
