package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"github.com/tbourn/shopping-assistant/internal/config"
	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/observability"
)

// Generator is the subset of *genai.Models used by the adapter.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ErrNoCandidates is returned when the provider answers without any text.
var ErrNoCandidates = errors.New("llm: response has no text candidates")

// Gemini is a Client backed by the Gemini API.
type Gemini struct {
	gen         Generator
	model       string
	timeout     time.Duration
	temperature float32
	maxTokens   int32
	instruction string
	log         zerolog.Logger
}

// Option configures a Gemini adapter.
type Option func(*Gemini)

// WithLogger sets the logger used for provider failures.
func WithLogger(l zerolog.Logger) Option { return func(g *Gemini) { g.log = l } }

// WithInstruction replaces SystemInstruction.
func WithInstruction(s string) Option {
	return func(g *Gemini) {
		if strings.TrimSpace(s) != "" {
			g.instruction = s
		}
	}
}

// NewGemini builds an adapter over gen using the model settings in cfg.
func NewGemini(gen Generator, cfg config.LLMConfig, opts ...Option) *Gemini {
	g := &Gemini{
		gen:         gen,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
		instruction: SystemInstruction,
		log:         log.Logger,
	}
	if g.timeout <= 0 {
		g.timeout = 30 * time.Second
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Dial creates a Gemini API client for cfg.APIKey.
func Dial(ctx context.Context, cfg config.LLMConfig) (*genai.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// Reply sends history to the model and returns its raw text. Any provider
// failure yields FallbackReply.
func (g *Gemini) Reply(ctx context.Context, history []Message) string {
	tr := otel.Tracer("llm/Gemini")
	ctx, span := tr.Start(ctx, "Reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.Int("llm.history_len", len(history)),
	)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.generate(ctx, BuildContents(g.instruction, history), g.replyConfig())
	elapsed := time.Since(start)
	observability.LLMLatency.Observe(elapsed.Seconds())

	if err != nil {
		outcome := observability.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = observability.OutcomeTimeout
		} else if errors.Is(err, ErrNoCandidates) {
			outcome = observability.OutcomeEmpty
		}
		observability.LLMRequests.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		g.log.Warn().Err(err).
			Str("model", g.model).
			Str("outcome", outcome).
			Dur("latency", elapsed).
			Msg("llm call failed; using fallback reply")
		return FallbackReply
	}

	observability.LLMRequests.WithLabelValues(observability.OutcomeOK).Inc()
	return text
}

func (g *Gemini) replyConfig() *genai.GenerateContentConfig {
	temp := g.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   ReplySchema(),
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = g.maxTokens
	}
	return cfg
}

func (g *Gemini) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.gen.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("%w (finish reason: %v)", ErrNoCandidates, cand.FinishReason)
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil && p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrNoCandidates
	}
	return text, nil
}

// BuildContents converts history into provider contents. The provider only
// accepts user and model roles, so system entries are dropped from the turn
// list and their text is prepended, together with instruction, to the first
// user turn. Model turns before the first user turn (a seeded greeting) are
// skipped, since the provider requires the conversation to open with the
// user. Consecutive entries with the same role share one content.
func BuildContents(instruction string, history []Message) []*genai.Content {
	preamble := []string{}
	if s := strings.TrimSpace(instruction); s != "" {
		preamble = append(preamble, s)
	}
	turns := make([]Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case domain.RoleSystem:
			if s := strings.TrimSpace(m.Content); s != "" {
				preamble = append(preamble, s)
			}
		case domain.RoleUser:
			turns = append(turns, m)
		case domain.RoleModel:
			if len(turns) > 0 {
				turns = append(turns, m)
			}
		}
	}

	system := strings.Join(preamble, "\n\n")
	folded := system == ""
	if !folded && len(turns) == 0 {
		turns = []Message{{Role: domain.RoleUser, Content: system}}
		folded = true
	}

	var out []*genai.Content
	for _, m := range turns {
		text := m.Content
		if !folded && m.Role == domain.RoleUser {
			text = system + "\n\n" + text
			folded = true
		}
		role := genai.RoleUser
		if m.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		part := &genai.Part{Text: text}
		if n := len(out); n > 0 && out[n-1].Role == string(role) {
			out[n-1].Parts = append(out[n-1].Parts, part)
			continue
		}
		out = append(out, &genai.Content{Role: string(role), Parts: []*genai.Part{part}})
	}
	return out
}
