package services

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/shopping-assistant/internal/llm"
)

// Researcher summarises the page behind a product link.
type Researcher interface {
	Research(ctx context.Context, link, name string) (string, error)
}

// ResearchService validates research requests before handing them to the
// model.
type ResearchService struct {
	Model Researcher
}

// Research returns a Markdown summary of the product at link.
func (s *ResearchService) Research(ctx context.Context, link, name string) (string, error) {
	tr := otel.Tracer("services/ResearchService")
	ctx, span := tr.Start(ctx, "Research",
		trace.WithAttributes(attribute.String("product.link", link)),
	)
	defer span.End()

	link, name = strings.TrimSpace(link), strings.TrimSpace(name)
	if link == "" || name == "" {
		return "", ErrResearchInput
	}
	if u, err := url.Parse(link); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrResearchInput
	}

	out, err := s.Model.Research(ctx, link, name)
	if errors.Is(err, llm.ErrResearchInput) {
		return "", ErrResearchInput
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "research failed")
		return "", err
	}
	return out, nil
}
