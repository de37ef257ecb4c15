package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

// ErrResearchInput reports a missing product link or name.
var ErrResearchInput = errors.New("product_link and product_name are required")

const researchPrompt = `You are a research agent for a shopping app. Always answer in Markdown.
Summarise the product %q: its key features, the best price you can find, where it stands on a rating scale of 1 to 5, and what customers say about it.
Use headings, subheadings and lists.

Product page for context: %s`

// Research asks the model for a Markdown summary of the product at link. The
// provider fetches the page through its URL-context tool. Unlike Reply,
// failures are returned to the caller.
func (g *Gemini) Research(ctx context.Context, link, name string) (string, error) {
	link, name = strings.TrimSpace(link), strings.TrimSpace(name)
	if link == "" || name == "" {
		return "", ErrResearchInput
	}

	tr := otel.Tracer("llm/Gemini")
	ctx, span := tr.Start(ctx, "Research")
	defer span.End()

	// Research pages are longer than chat turns.
	ctx, cancel := context.WithTimeout(ctx, 2*g.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{URLContext: &genai.URLContext{}}},
	}
	start := time.Now()
	text, err := g.generate(ctx, genai.Text(fmt.Sprintf(researchPrompt, name, link)), cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "research failed")
		g.log.Warn().Err(err).Str("product", name).Dur("latency", time.Since(start)).Msg("product research failed")
		return "", err
	}
	return text, nil
}
